package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strconv"

	"github.com/genomatch/dnalabbackend/database"
)

type ListHandler struct {
	DB *sql.DB
}

// ListFamilies returns a page of parents with their children grouped by
// shared source files, newest uploads first
func (lh *ListHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)
	if pageSize > 100 {
		pageSize = 100
	}

	result, err := database.ListFamilies(lh.DB, page, pageSize)
	if err != nil {
		log.Printf("Error listing families: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to list records"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
