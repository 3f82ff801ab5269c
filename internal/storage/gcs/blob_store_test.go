package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "pages"})
	require.Error(t, err)
}

func TestAlreadyExists(t *testing.T) {
	t.Parallel()

	precondition := &googleapi.Error{Code: http.StatusPreconditionFailed}
	require.True(t, alreadyExists(precondition))
	require.True(t, alreadyExists(fmt.Errorf("close: %w", precondition)))
	require.False(t, alreadyExists(&googleapi.Error{Code: http.StatusForbidden}))
	require.False(t, alreadyExists(errors.New("boom")))
}
