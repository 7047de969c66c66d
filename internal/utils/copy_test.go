package utils

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFlush(t *testing.T) {
	rec := httptest.NewRecorder()

	n, err := CopyFlush(rec, iotest.HalfReader(strings.NewReader("0123456789")), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "0123456789", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestCopyFlushReadError(t *testing.T) {
	rec := httptest.NewRecorder()
	boom := errors.New("boom")

	n, err := CopyFlush(rec, iotest.DataErrReader(iotest.ErrReader(boom)), 4)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), n)
}
