package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOffsetPageMath(t *testing.T) {
	page := newOffsetPage(nil, 45, 2, 10)

	assert.Equal(t, int64(45), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Equal(t, 5, page.TotalPages)
}

func TestNewOffsetPageExactMultiple(t *testing.T) {
	page := newOffsetPage(nil, 40, 1, 10)

	assert.Equal(t, 4, page.TotalPages)
}

func TestNewOffsetPageDefaultsPageSize(t *testing.T) {
	for _, size := range []int{0, -5} {
		page := newOffsetPage(nil, 50, 1, size)

		assert.Equal(t, defaultPageSize, page.PageSize)
		assert.Equal(t, 3, page.TotalPages)
	}
}

func TestNewOffsetPageEmpty(t *testing.T) {
	page := newOffsetPage(nil, 0, 1, 20)

	assert.Equal(t, 0, page.TotalPages)
}
