package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("test", -7*60*60)
	in := time.Date(2024, time.March, 9, 23, 59, 1, 5, loc)
	require.Equal(t, time.Date(2024, time.March, 9, 0, 0, 0, 0, loc), StartOfDay(in))
}

func TestFixedTime(t *testing.T) {
	at := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, at, FixedTime{At: at}.Now())
}
