package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestForTagsComponent(t *testing.T) {
	Init(zerolog.InfoLevel, false)
	l := For("master")
	require.Equal(t, zerolog.InfoLevel, l.GetLevel())

	var buf bytes.Buffer
	l.Output(&buf).Info().Msg("hello")
	require.Contains(t, buf.String(), `"component":"master"`)
}
