package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/response"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// paginate slices items by the page and per_page query parameters.
func paginate[T any](c *gin.Context, items []T) ([]T, *response.Pagination) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	total := len(items)
	p := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}

	start := (page - 1) * perPage
	if start >= total {
		return []T{}, p
	}
	end := min(start+perPage, total)
	return items[start:end], p
}
