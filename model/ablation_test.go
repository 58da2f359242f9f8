package model

import (
	"encoding/json"
	"testing"

	"github.com/siherrmann/carst/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAblationMode(t *testing.T) {
	t.Run("Parses names and numbers", func(t *testing.T) {
		for input, expected := range map[string]AblationMode{
			"full":     AblationFull,
			"Text":     AblationText,
			"2":        AblationStructure,
			" concat ": AblationConcat,
			"plain":    AblationPlain,
			"4":        AblationPlain,
		} {
			mode, err := ParseAblationMode(input)
			require.NoError(t, err, input)
			assert.Equal(t, expected, mode, input)
		}
	})

	t.Run("Rejects values outside the enumeration", func(t *testing.T) {
		for _, input := range []string{"5", "-1", "cross", ""} {
			_, err := ParseAblationMode(input)
			assert.ErrorIs(t, err, helper.ErrConfiguration, input)
		}
	})
}

func TestAblationMode_Modalities(t *testing.T) {
	t.Run("Text and structure usage per mode", func(t *testing.T) {
		assert.True(t, AblationFull.UsesText())
		assert.True(t, AblationFull.UsesStructure())
		assert.True(t, AblationText.UsesText())
		assert.False(t, AblationText.UsesStructure())
		assert.False(t, AblationStructure.UsesText())
		assert.True(t, AblationStructure.UsesStructure())
		assert.True(t, AblationConcat.UsesText())
		assert.True(t, AblationConcat.UsesStructure())
		assert.False(t, AblationPlain.UsesText())
		assert.False(t, AblationPlain.UsesStructure())
	})
}

func TestAblationMode_JSON(t *testing.T) {
	t.Run("Marshals as name", func(t *testing.T) {
		data, err := json.Marshal(AblationStructure)
		require.NoError(t, err)
		assert.Equal(t, `"structure"`, string(data))
	})

	t.Run("Unmarshals name and number", func(t *testing.T) {
		var fromName, fromNumber AblationMode
		require.NoError(t, json.Unmarshal([]byte(`"concat"`), &fromName))
		require.NoError(t, json.Unmarshal([]byte(`3`), &fromNumber))
		assert.Equal(t, AblationConcat, fromName)
		assert.Equal(t, AblationConcat, fromNumber)
	})

	t.Run("Invalid mode cannot be marshaled", func(t *testing.T) {
		_, err := json.Marshal(AblationMode(7))
		assert.Error(t, err)
	})
}
