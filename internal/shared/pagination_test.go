package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 35)
	assert.Equal(t, 4, p.TotalPages)
	assert.Equal(t, 10, p.Offset())
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	last := NewPagination(4, 10, 35)
	assert.False(t, last.HasNext())

	defaults := NewPagination(0, 0, 0)
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, DefaultPerPage, defaults.PerPage)
	assert.Equal(t, 0, defaults.Offset())
	assert.False(t, defaults.HasPrev())
}

func TestPageFromQuery(t *testing.T) {
	assert.Equal(t, 1, PageFromQuery(url.Values{}))
	assert.Equal(t, 1, PageFromQuery(url.Values{"page": {"-3"}}))
	assert.Equal(t, 7, PageFromQuery(url.Values{"page": {"7"}}))
}
