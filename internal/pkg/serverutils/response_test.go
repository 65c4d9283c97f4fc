package serverutils

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessResponse(t *testing.T) {
	resp := SuccessResponse("created", map[string]string{"id": "1"})

	assert.True(t, resp.Success)
	assert.Equal(t, "created", resp.Message)
	assert.Equal(t, "1", resp.Data["id"])
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(fiber.StatusNotFound, "session not found")

	assert.False(t, resp.Success)
	assert.Equal(t, fiber.StatusNotFound, resp.Code)
	assert.Equal(t, "session not found", resp.Message)
}

func TestValidateRequest(t *testing.T) {
	type askRequest struct {
		Question string `validate:"required,min=1,max=10"`
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateRequest(&askRequest{Question: "hi"}))
	})

	t.Run("missing field", func(t *testing.T) {
		err := ValidateRequest(&askRequest{})
		require.Error(t, err)

		fe, ok := err.(*fiber.Error)
		require.True(t, ok, "validation failures must surface as fiber errors")
		assert.Equal(t, fiber.StatusBadRequest, fe.Code)
		assert.Contains(t, fe.Message, "Question")
	})

	t.Run("too long", func(t *testing.T) {
		err := ValidateRequest(&askRequest{Question: "far too long for the limit"})
		require.Error(t, err)
	})
}
