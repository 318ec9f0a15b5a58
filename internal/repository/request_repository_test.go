package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/account-requests/internal/domain"
)

func TestBuildListQueryEscapesSearchWildcards(t *testing.T) {
	search := "  Mary_Jane%  "
	query, args := buildListQuery(RequestFilter{Search: &search})

	require.Len(t, args, 1)
	assert.Equal(t, `%mary\_jane\%%`, args[0])
	assert.Contains(t, query, "LOWER(requester_email) LIKE $1")
}

func TestBuildListQueryStatusAndPaging(t *testing.T) {
	status := domain.RequestStatusClosed
	search := "acct-0007"
	query, args := buildListQuery(RequestFilter{Status: &status, Search: &search, Limit: 25, Offset: -5})

	assert.Equal(t, []any{domain.RequestStatusClosed, "%acct-0007%"}, args)
	assert.Contains(t, query, "status=$1")
	assert.Contains(t, query, "LIKE $2")
	assert.Contains(t, query, "ORDER BY created_at DESC, id DESC LIMIT 25 OFFSET 0")
}

func TestBuildListQueryIgnoresBlankSearch(t *testing.T) {
	blank := "   "
	query, args := buildListQuery(RequestFilter{Search: &blank})
	assert.Empty(t, args)
	assert.NotContains(t, query, "LIKE")
}
