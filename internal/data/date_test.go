package data

import (
	"encoding/json"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateScan(t *testing.T) {
	want := NewDate(2026, time.October, 18)

	tests := []struct {
		name string
		src  any
	}{
		{"time", time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC)},
		{"string", "2026-10-18"},
		{"bytes", []byte("2026-10-18")},
		{"timestamp text", "2026-10-18 00:00:00+00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(tt.src))
			assert.True(t, d.Equal(want), d.String())
		})
	}

	var d Date
	assert.Error(t, d.Scan(42))
	assert.ErrorIs(t, d.Scan("18/10/2026"), ErrInvalidDateFormat)
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2023, time.November, 11)

	js, err := json.Marshal(struct {
		At *Date `json:"at"`
	}{&d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"2023-11-11"}`, string(js))

	var parsed Date
	assert.ErrorIs(t, json.Unmarshal([]byte(`"11-11-2023"`), &parsed), ErrInvalidDateFormat)
}

func TestNullableDateJSON(t *testing.T) {
	type input struct {
		Died NullableDate `json:"date_of_death"`
	}

	decoders := map[string]func([]byte, any) error{
		"encoding/json": json.Unmarshal,
		"jsoniter":      jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
	}
	for name, unmarshal := range decoders {
		t.Run(name, func(t *testing.T) {
			var absent input
			require.NoError(t, unmarshal([]byte(`{}`), &absent))
			assert.False(t, absent.Died.Set)

			for _, body := range []string{`{"date_of_death":null}`, `{"date_of_death":""}`} {
				var cleared input
				require.NoError(t, unmarshal([]byte(body), &cleared), body)
				assert.True(t, cleared.Died.Set, body)
				assert.Nil(t, cleared.Died.Date, body)
			}

			var given input
			require.NoError(t, unmarshal([]byte(`{"date_of_death":"1992-04-06"}`), &given))
			assert.True(t, given.Died.Set)
			require.NotNil(t, given.Died.Date)
			assert.Equal(t, "1992-04-06", given.Died.Date.String())

			var bad input
			assert.Error(t, unmarshal([]byte(`{"date_of_death":"April"}`), &bad))
		})
	}

	js, err := json.Marshal(input{Died: ClearDate()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date_of_death":null}`, string(js))
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2026, time.October, 18)

	assert.Equal(t, "2026-11-08", d.AddWeeks(3).String())
	assert.True(t, d.Before(d.AddWeeks(1)))
	assert.True(t, d.AddWeeks(1).After(d))

	local := time.Date(2026, time.October, 18, 23, 30, 0, 0, time.FixedZone("X", -5*3600))
	assert.True(t, DateOf(local).Equal(d))
}

func TestMetadata(t *testing.T) {
	assert.Equal(t, Metadata{}, calculateMetadata(0, 1, 10))
	assert.False(t, Metadata{}.OutOfRange(Filters{Page: 1, PageSize: 10}))
	assert.True(t, Metadata{}.OutOfRange(Filters{Page: 2, PageSize: 10}))

	m := calculateMetadata(13, 2, 10)
	assert.Equal(t, 2, m.LastPage)
	assert.Equal(t, uint64(10), Filters{Page: 2, PageSize: 10}.offset())
	assert.Equal(t, uint64(10), Filters{Page: 2, PageSize: 10}.limit())
}
