package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cashboard/cashboard/internal/common"
	"github.com/cashboard/cashboard/internal/model"
	"github.com/cashboard/cashboard/internal/service"
)

type categoryRequest struct {
	Name          string   `json:"name"`
	MonthlyBudget *float64 `json:"monthly_budget,omitempty"`
	Icon          *string  `json:"icon,omitempty"`
	Color         *string  `json:"color,omitempty"`
}

type ruleRequest struct {
	CategoryID int64  `json:"category_id"`
	Keyword    string `json:"keyword"`
	MatchType  string `json:"match_type"`
}

type classifyRequest struct {
	CategoryID      int64   `json:"category_id"`
	TransactionType *string `json:"transaction_type,omitempty"`
	CreateRule      bool    `json:"create_rule,omitempty"`
	Keyword         *string `json:"keyword,omitempty"`
	MatchType       *string `json:"match_type,omitempty"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get(cacheKeyCategories); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	categories, err := s.store.GetCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}

	s.cache.SetDefault(cacheKeyCategories, categories)
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := &model.Category{
		Name:          req.Name,
		MonthlyBudget: req.MonthlyBudget,
		Icon:          req.Icon,
		Color:         req.Color,
	}
	id, err := s.store.CreateCategory(r.Context(), category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category.ID = id

	s.cache.Delete(cacheKeyCategories)
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := &model.Category{
		ID:            id,
		Name:          req.Name,
		MonthlyBudget: req.MonthlyBudget,
		Icon:          req.Icon,
		Color:         req.Color,
	}
	if err := s.store.UpdateCategory(r.Context(), category); err != nil {
		if errors.Is(err, common.ErrCategoryNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.cache.Delete(cacheKeyCategories)
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, common.ErrCategoryNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.cache.Delete(cacheKeyCategories)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.cache.Get(cacheKeyRules); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	rules, err := s.store.GetClassificationRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rules == nil {
		rules = []model.ClassificationRule{}
	}

	s.cache.SetDefault(cacheKeyRules, rules)
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := s.store.GetCategoryByID(r.Context(), req.CategoryID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "category not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	matchType := model.MatchContains
	if req.MatchType != "" {
		matchType = model.MatchType(req.MatchType)
	}

	rule := &model.ClassificationRule{
		CategoryID: req.CategoryID,
		Keyword:    req.Keyword,
		MatchType:  matchType,
	}
	id, err := s.store.CreateClassificationRule(r.Context(), rule)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule.ID = id

	s.cache.Delete(cacheKeyRules)
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := s.store.DeleteClassificationRule(r.Context(), id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.cache.Delete(cacheKeyRules)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.GetAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.store.GetCreditCards(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cards == nil {
		cards = []model.CreditCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleScrapeLog(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := s.store.GetScrapeLog(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []model.ScrapeLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := s.store.GetTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) handleUncategorized(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.store.GetUncategorizedTransactions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

// handleClassifyTransaction manually reclassifies one transaction and can
// record a new classification rule from the same request. A nonexistent
// category is a validation failure, not an internal error.
func (s *Server) handleClassifyTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := s.store.GetTransactionByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var txType *model.TransactionType
	if req.TransactionType != nil {
		t := model.TransactionType(*req.TransactionType)
		txType = &t
	}

	if err := s.store.ReclassifyTransaction(r.Context(), id, req.CategoryID, txType); err != nil {
		if errors.Is(err, common.ErrCategoryNotFound) {
			writeError(w, http.StatusBadRequest, "category not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.CreateRule {
		keyword := ""
		if req.Keyword != nil {
			keyword = *req.Keyword
		} else if existing.Description != nil {
			keyword = *existing.Description
		}

		matchType := model.MatchContains
		if req.MatchType != nil {
			matchType = model.MatchType(*req.MatchType)
		}

		rule := &model.ClassificationRule{
			CategoryID: req.CategoryID,
			Keyword:    keyword,
			MatchType:  matchType,
		}
		if _, err := s.store.CreateClassificationRule(r.Context(), rule); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.cache.Delete(cacheKeyRules)
	}

	updated, err := s.store.GetTransactionByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseTransactionFilter(r *http.Request) (service.TransactionFilter, error) {
	var filter service.TransactionFilter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		filter.FromDate = &v
	}
	if v := q.Get("to"); v != "" {
		filter.ToDate = &v
	}
	if v := q.Get("category"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.New("invalid category filter")
		}
		filter.CategoryID = &id
	}
	if v := q.Get("account"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.New("invalid account filter")
		}
		filter.AccountID = &id
	}
	if v := q.Get("source_type"); v != "" {
		st := model.SourceType(v)
		filter.SourceType = &st
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}
