package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hanyong5/kiview/config"
	"github.com/hanyong5/kiview/models"
	"github.com/stretchr/testify/assert"
)

func TestCreditBalance(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	guest := models.User{Name: "guest", Phone: models.GuestPhone}
	db.Create(&guest)
	member := models.User{Name: "Member", Phone: "01012345678"}
	db.Create(&member)

	tests := []struct {
		name            string
		requestBody     map[string]interface{}
		expectedStatus  int
		expectedError   string
		expectedBalance float64
	}{
		{
			name: "First credit creates the balance row",
			requestBody: map[string]interface{}{
				"user_id": member.ID,
				"amount":  5000,
			},
			expectedStatus:  http.StatusOK,
			expectedBalance: 5000,
		},
		{
			name: "Second credit accumulates",
			requestBody: map[string]interface{}{
				"user_id": member.ID,
				"amount":  3000,
			},
			expectedStatus:  http.StatusOK,
			expectedBalance: 8000,
		},
		{
			name: "Fail with zero amount",
			requestBody: map[string]interface{}{
				"user_id": member.ID,
				"amount":  0,
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name: "Fail with negative amount",
			requestBody: map[string]interface{}{
				"user_id": member.ID,
				"amount":  -500,
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name: "Fail with unknown user",
			requestBody: map[string]interface{}{
				"user_id": 999,
				"amount":  1000,
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "USER_NOT_FOUND",
		},
		{
			name: "Fail for the guest identity",
			requestBody: map[string]interface{}{
				"user_id": guest.ID,
				"amount":  1000,
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "GUEST_NO_BALANCE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.POST("/balances/credit",
				mockAuthMiddleware("auth0|admin", "admin"),
				CreditBalance,
			)

			body, _ := json.Marshal(tt.requestBody)
			req, _ := http.NewRequest(http.MethodPost, "/balances/credit", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			assert.NoError(t, err)

			if tt.expectedError != "" {
				assert.False(t, response["success"].(bool))
				errorData := response["error"].(map[string]interface{})
				assert.Equal(t, tt.expectedError, errorData["code"])
				return
			}

			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.expectedBalance, data["balance"])
		})
	}
}

func TestListBalances(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	first := models.User{Name: "First Member", Phone: "01011110001"}
	db.Create(&first)
	second := models.User{Name: "Second Member", Phone: "01011110002"}
	db.Create(&second)

	db.Create(&models.Balance{UserID: first.ID, Balance: 1000})
	db.Create(&models.Balance{UserID: second.ID, Balance: 9000})

	// Touch the first balance so it becomes the most recently updated.
	db.Model(&models.Balance{}).Where("user_id = ?", first.ID).Update("balance", 1500)

	router := setupTestRouter()
	router.GET("/balances",
		mockAuthMiddleware("auth0|admin", "admin"),
		ListBalances,
	)

	req, _ := http.NewRequest(http.MethodGet, "/balances", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	data := response["data"].([]interface{})
	assert.Len(t, data, 2)

	// Most recently updated first, with the owner loaded.
	top := data[0].(map[string]interface{})
	assert.Equal(t, float64(1500), top["balance"])
	owner := top["user"].(map[string]interface{})
	assert.Equal(t, "First Member", owner["name"])
}
