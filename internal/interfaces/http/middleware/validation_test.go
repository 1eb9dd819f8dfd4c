package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcing/backend/internal/interfaces/http/dto"
)

type validationInput struct {
	Keywords string   `json:"keywords" binding:"required,max=5"`
	Feeds    []string `json:"feeds" binding:"max=2,dive,oneof=a b"`
	PageSize int      `json:"page_size" binding:"omitempty,gte=1,lte=100"`
	Internal string   `json:"-"`
}

func TestFormatValidationErrors(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var in validationInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) (*httptest.ResponseRecorder, dto.Response) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-val")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp dto.Response
		if w.Code != http.StatusOK {
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		}
		return w, resp
	}

	t.Run("reports json field names", func(t *testing.T) {
		w, resp := post(`{"keywords": "much too long", "feeds": ["a", "b", "a"], "page_size": 500}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-val", resp.Error.RequestID)

		messages := map[string]string{}
		for _, d := range resp.Error.Details {
			messages[d.Field] = d.Message
		}
		assert.Equal(t, "Must be at most 5 characters", messages["keywords"])
		assert.Equal(t, "Must contain at most 2 items", messages["feeds"])
		assert.Equal(t, "Must be less than or equal to 100", messages["page_size"])
	})

	t.Run("reports missing required fields", func(t *testing.T) {
		_, resp := post(`{}`)

		require.NotNil(t, resp.Error)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "keywords", resp.Error.Details[0].Field)
		assert.Equal(t, "This field is required", resp.Error.Details[0].Message)
	})

	t.Run("accepts valid input", func(t *testing.T) {
		w, _ := post(`{"keywords": "lamp", "feeds": ["a"]}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non validation errors carry no details", func(t *testing.T) {
		resp := FormatValidationErrors(errors.New("unexpected EOF"), "req-1")

		require.NotNil(t, resp.Error)
		assert.Empty(t, resp.Error.Details)
		assert.Equal(t, "req-1", resp.Error.RequestID)
	})
}

func TestValidationMessage(t *testing.T) {
	type input struct {
		Required string   `validate:"required"`
		MinStr   string   `validate:"min=5"`
		MinInt   int      `validate:"min=3"`
		MinList  []string `validate:"min=1"`
		OneOf    string   `validate:"oneof=x y"`
		GTE      int      `validate:"gte=10"`
		URL      string   `validate:"url"`
		Other    string   `validate:"alpha"`
	}

	err := validator.New().Struct(input{
		MinStr: "ab",
		MinInt: 1,
		OneOf:  "z",
		GTE:    2,
		URL:    "not a url",
		Other:  "123",
	})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	got := map[string]string{}
	for _, e := range verrs {
		got[e.Field()] = validationMessage(e)
	}

	assert.Equal(t, map[string]string{
		"Required": "This field is required",
		"MinStr":   "Must be at least 5 characters",
		"MinInt":   "Must be at least 3",
		"MinList":  "Must contain at least 1 items",
		"OneOf":    "Must be one of: x y",
		"GTE":      "Must be greater than or equal to 10",
		"URL":      "Invalid URL format",
		"Other":    "Invalid value",
	}, got)
}

func TestFieldNameSkipsIgnoredFields(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.POST("/test", func(c *gin.Context) {
		var in validationInput
		_ = c.ShouldBindJSON(&in)
		c.String(http.StatusOK, in.Internal)
	})

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"keywords":"a","Internal":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Body.String())
}
