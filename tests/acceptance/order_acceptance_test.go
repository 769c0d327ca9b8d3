package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/hanyong5/kiview/config"
	"github.com/hanyong5/kiview/controllers"
	"github.com/hanyong5/kiview/middleware"
	"github.com/hanyong5/kiview/models"
	"github.com/hanyong5/kiview/services"
	"github.com/hanyong5/kiview/tests/testutil"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OrderAcceptanceTestSuite drives the kiosk order flow through a real HTTP
// server, from the member's signup to the admin's cancellation.
type OrderAcceptanceTestSuite struct {
	suite.Suite
	server *httptest.Server
	db     *gorm.DB
	images *services.MockImageService
}

// SetupSuite runs once before all tests
func (suite *OrderAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	os.Setenv("GO_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.NoError(err)
	suite.NoError(db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Balance{},
	))
	suite.db = db
	config.SetDB(db)
	services.SetCatalogCache(nil)

	suite.images = services.NewMockImageService()
	suite.images.SetAsMockForTesting()

	suite.db.Create(&models.User{Name: "guest", Phone: models.GuestPhone})

	suite.server = httptest.NewServer(suite.createRouter())
}

// TearDownSuite runs once after all tests
func (suite *OrderAcceptanceTestSuite) TearDownSuite() {
	suite.server.Close()
}

// createRouter wires the public and admin routes; the JWT middleware is
// replaced with a stub that injects admin claims
func (suite *OrderAcceptanceTestSuite) createRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	adminAuth := func(c *gin.Context) {
		c.Set("user_id", "auth0|acceptance-admin")
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{Role: "admin"},
		})
		c.Next()
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", controllers.ListProducts)
		v1.POST("/users", controllers.CreateUser)
		v1.GET("/users/:id/balance", controllers.GetUserBalance)
		v1.POST("/orders", controllers.CreateOrder)

		admin := v1.Group("")
		admin.Use(adminAuth, middleware.RequireRole("admin"))
		{
			admin.POST("/products", controllers.CreateProduct)
			admin.POST("/balances/credit", controllers.CreditBalance)
			admin.PUT("/orders/:id/status", controllers.UpdateOrderStatus)
			admin.GET("/sales", controllers.ListSales)
		}
	}

	return router
}

func (suite *OrderAcceptanceTestSuite) postJSON(path string, body map[string]interface{}) (*http.Response, map[string]interface{}) {
	data, _ := json.Marshal(body)
	resp, err := http.Post(suite.server.URL+path, "application/json", bytes.NewBuffer(data))
	suite.NoError(err)
	return resp, suite.decode(resp)
}

func (suite *OrderAcceptanceTestSuite) getJSON(path string) (*http.Response, map[string]interface{}) {
	resp, err := http.Get(suite.server.URL + path)
	suite.NoError(err)
	return resp, suite.decode(resp)
}

func (suite *OrderAcceptanceTestSuite) decode(resp *http.Response) map[string]interface{} {
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	suite.NoError(err)

	var response map[string]interface{}
	suite.NoError(json.Unmarshal(payload, &response))
	return response
}

// TestFullOrderFlow covers the happy path end to end
func (suite *OrderAcceptanceTestSuite) TestFullOrderFlow() {
	// Admin creates a product with an image.
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("name", "Americano")
	writer.WriteField("price", "3000")
	part, err := writer.CreateFormFile("image", "americano.png")
	suite.NoError(err)
	part.Write([]byte("fake image bytes"))
	writer.Close()

	resp, err := http.Post(suite.server.URL+"/api/v1/products", writer.FormDataContentType(), body)
	suite.NoError(err)
	productResp := suite.decode(resp)
	suite.Equal(http.StatusCreated, resp.StatusCode)
	productID := productResp["data"].(map[string]interface{})["id"].(float64)

	// The product shows up in the kiosk catalog.
	resp, catalog := suite.getJSON("/api/v1/products")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Len(catalog["data"].([]interface{}), 1)

	// A member signs up and gets credited.
	resp, signup := suite.postJSON("/api/v1/users", map[string]interface{}{
		"name":  "Acceptance Member",
		"phone": "01055556666",
	})
	suite.Equal(http.StatusCreated, resp.StatusCode)
	memberID := signup["data"].(map[string]interface{})["id"].(float64)

	resp, _ = suite.postJSON("/api/v1/balances/credit", map[string]interface{}{
		"user_id": memberID,
		"amount":  10000,
	})
	suite.Equal(http.StatusOK, resp.StatusCode)

	// The member orders two americanos.
	resp, orderResp := suite.postJSON("/api/v1/orders", map[string]interface{}{
		"phone": "01055556666",
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": 2},
		},
	})
	suite.Equal(http.StatusCreated, resp.StatusCode)
	orderData := orderResp["data"].(map[string]interface{})
	suite.Equal(float64(6000), orderData["total_price"])
	suite.Equal("pending", orderData["status"])
	orderID := orderData["id"].(float64)

	// The balance reflects the payment.
	resp, balance := suite.getJSON("/api/v1/users/" + strconv.Itoa(int(memberID)) + "/balance")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(float64(4000), balance["data"].(map[string]interface{})["balance"])

	// The sale shows up in the admin report.
	resp, sales := suite.getJSON("/api/v1/sales?segment=member")
	suite.Equal(http.StatusOK, resp.StatusCode)
	stats := sales["data"].(map[string]interface{})["stats"].(map[string]interface{})
	suite.Equal(float64(1), stats["orders"])
	suite.Equal(float64(6000), stats["amount"])

	// The admin cancels the order and the member is refunded.
	data, _ := json.Marshal(map[string]string{"status": models.StatusCancelled})
	req, _ := http.NewRequest(http.MethodPut,
		suite.server.URL+"/api/v1/orders/"+strconv.Itoa(int(orderID))+"/status",
		bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	suite.NoError(err)
	suite.decode(resp)
	suite.Equal(http.StatusOK, resp.StatusCode)

	resp, balance = suite.getJSON("/api/v1/users/" + strconv.Itoa(int(memberID)) + "/balance")
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(float64(10000), balance["data"].(map[string]interface{})["balance"])
}

// TestGuestOrderNeedsNoBalance covers the walk-in path
func (suite *OrderAcceptanceTestSuite) TestGuestOrderNeedsNoBalance() {
	product := models.Product{Name: "Latte", Price: 4000}
	suite.db.Create(&product)

	resp, orderResp := suite.postJSON("/api/v1/orders", map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": product.ID, "quantity": 1},
		},
	})
	suite.Equal(http.StatusCreated, resp.StatusCode)

	user := orderResp["data"].(map[string]interface{})["user"].(map[string]interface{})
	suite.Equal(models.GuestPhone, user["phone"])
}

func TestOrderAcceptanceTestSuite(t *testing.T) {
	testutil.MustSetTestEnvironment(t)
	testutil.RequireTestEnvironment(t)
	suite.Run(t, new(OrderAcceptanceTestSuite))
}
