package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRankInput(t *testing.T) {
	in, err := readRankInput(strings.NewReader(`  [{"id": 1, "ticker": "tsla"}, {"id": 2}]`))
	require.NoError(t, err)
	assert.Len(t, in.Posts, 2)
	assert.Empty(t, in.Strategy)
	assert.Nil(t, in.Preferences)

	in, err = readRankInput(strings.NewReader(`{
		"strategy": "trending",
		"preferences": {"preferred_sectors": ["Energy"]},
		"posts": [{"id": 3}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "trending", in.Strategy)
	require.NotNil(t, in.Preferences)
	assert.Equal(t, []string{"Energy"}, in.Preferences.PreferredSectors)
	assert.Len(t, in.Posts, 1)

	_, err = readRankInput(strings.NewReader(`{"posts": 5}`))
	assert.Error(t, err)
}

func TestDash(t *testing.T) {
	assert.Equal(t, "-", dash(""))
	assert.Equal(t, "AAPL", dash("AAPL"))
}
