package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShiftYears(t *testing.T) {
	d := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	got, ok := ShiftYears(d, -1)
	assert.True(t, ok)
	assert.Equal(t, "2023-03-01", got.Format(DateLayout))

	leap := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	_, ok = ShiftYears(leap, -1)
	assert.False(t, ok)

	got, ok = ShiftYears(leap, -4)
	assert.True(t, ok)
	assert.Equal(t, "2020-02-29", got.Format(DateLayout))

	_, ok = ShiftYears(time.Date(2000, time.February, 29, 0, 0, 0, 0, time.UTC), -100)
	assert.False(t, ok, "1900 is not a leap year")
}

func TestDayNormalizesToUTCMidnight(t *testing.T) {
	in := time.Date(2024, time.July, 4, 17, 30, 0, 0, time.FixedZone("x", 3600))
	assert.Equal(t, time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC), Day(in))
}

func TestLocationValidate(t *testing.T) {
	assert.NoError(t, Location{Latitude: 90, Longitude: -180}.Validate())
	assert.ErrorIs(t, Location{Latitude: 90.1}.Validate(), ErrInvalidLocation)
	assert.ErrorIs(t, Location{Longitude: 181}.Validate(), ErrInvalidLocation)
}

func TestLocationEqualityIgnoresName(t *testing.T) {
	a := Location{Latitude: 1.5, Longitude: 2.5, Name: "a"}
	b := Location{Latitude: 1.5, Longitude: 2.5, Name: "b"}
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Location{Latitude: 1.50001, Longitude: 2.5}.Key())
}
