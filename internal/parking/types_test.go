package parking

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVehicleClass(t *testing.T) {
	cases := map[string]VehicleClass{
		"small":   Small,
		"MEDIUM":  Medium,
		" Large ": Large,
	}
	for input, want := range cases {
		got, err := ParseVehicleClass(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := ParseVehicleClass("bus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownClass))
	assert.NotEmpty(t, errors.GetAllHints(err))

	_, err = ParseCustomerClass("gold")
	assert.True(t, errors.Is(err, ErrUnknownClass))

	_, err = ParseSection("rooftop")
	assert.True(t, errors.Is(err, ErrUnknownClass))
}

func TestParseCustomerClassIsCaseInsensitive(t *testing.T) {
	got, err := ParseCustomerClass("vip")
	require.NoError(t, err)
	assert.Equal(t, VIPCustomer, got)

	got, err = ParseCustomerClass("Regular")
	require.NoError(t, err)
	assert.Equal(t, RegularCustomer, got)
}

func TestEveryVariantHasDisplayName(t *testing.T) {
	for _, c := range VehicleClasses {
		assert.NotEmpty(t, vehicleClassNames[c])
		assert.NotEmpty(t, vehicleClassCodes[c])
	}
	for _, c := range CustomerClasses {
		assert.NotEmpty(t, customerClassNames[c])
	}
	for _, s := range Sections {
		assert.NotEmpty(t, sectionNames[s])
		assert.NotEmpty(t, sectionCodes[s])
	}

	assert.Equal(t, "Unknown", VehicleClass(0).String())
	assert.Equal(t, "Unknown", CustomerClass(9).String())
	assert.Equal(t, "Unknown", Section(-1).String())
}
