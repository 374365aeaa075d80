package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/easexpo/marketplace-backend/internal/config"
	"github.com/easexpo/marketplace-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentGateway creates orders and verifies callbacks at the payment provider
type PaymentGateway interface {
	IsConfigured() bool
	KeyID() string
	Currency() string
	CreateOrder(ctx context.Context, amount float64, receipt string) (*models.GatewayOrder, *GatewayCall, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// GatewayCall records one HTTP exchange with the gateway for the payment audit
type GatewayCall struct {
	Endpoint   string
	StatusCode int
	Request    map[string]interface{}
	Response   map[string]interface{}
}

// RazorpayService talks to the Razorpay Orders API
type RazorpayService struct {
	config config.RazorpayConfig
	logger *logrus.Logger
	client *http.Client
}

// razorpayOrderRequest is the body of POST /orders
type razorpayOrderRequest struct {
	Amount         int64  `json:"amount"` // minor units
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

// razorpayOrderResponse is the subset of the order entity we use
type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// NewRazorpayService creates a new Razorpay client with a bounded timeout
func NewRazorpayService(cfg config.RazorpayConfig, logger *logrus.Logger) *RazorpayService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com/v1/"
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &RazorpayService{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether both API keys are present
func (s *RazorpayService) IsConfigured() bool {
	return s.config.IsConfigured()
}

// KeyID is the public key handed to the checkout widget
func (s *RazorpayService) KeyID() string {
	return s.config.KeyID
}

// Currency is the ISO currency orders are created in
func (s *RazorpayService) Currency() string {
	return s.config.Currency
}

// CreateOrder creates an auto-capture order for amount. The returned call is
// non-nil whenever a request was sent, even if it failed.
func (s *RazorpayService) CreateOrder(ctx context.Context, amount float64, receipt string) (*models.GatewayOrder, *GatewayCall, error) {
	if !s.IsConfigured() {
		return nil, nil, models.ErrGatewayUnconfigured
	}
	if amount <= 0 {
		return nil, nil, fmt.Errorf("%w: order amount must be greater than zero", models.ErrInvalidRange)
	}

	body := razorpayOrderRequest{
		Amount:         models.ToMinorUnits(amount),
		Currency:       s.config.Currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	}
	call := &GatewayCall{
		Endpoint: s.config.BaseURL + "orders",
		Request: map[string]interface{}{
			"amount":          body.Amount,
			"currency":        body.Currency,
			"receipt":         body.Receipt,
			"payment_capture": body.PaymentCapture,
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build order request: %w", err)
	}
	req.SetBasicAuth(s.config.KeyID, s.config.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	s.logger.WithFields(logrus.Fields{
		"receipt":  receipt,
		"amount":   amount,
		"currency": body.Currency,
	}).Info("Creating Razorpay order")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Razorpay orders endpoint")
		return nil, call, fmt.Errorf("%w: %v", models.ErrGatewayError, err)
	}
	defer resp.Body.Close()
	call.StatusCode = resp.StatusCode

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, call, fmt.Errorf("%w: failed to read response: %v", models.ErrGatewayError, err)
	}
	var raw map[string]interface{}
	if json.Unmarshal(respBody, &raw) == nil {
		call.Response = raw
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(respBody),
		}).Error("Razorpay rejected order")
		return nil, call, fmt.Errorf("%w: gateway returned status %d", models.ErrGatewayError, resp.StatusCode)
	}

	var order razorpayOrderResponse
	if err := json.Unmarshal(respBody, &order); err != nil || order.ID == "" {
		s.logger.WithField("body", string(respBody)).Error("Failed to parse Razorpay order")
		return nil, call, fmt.Errorf("%w: malformed order response", models.ErrGatewayError)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"receipt":  order.Receipt,
	}).Info("Razorpay order created")

	return &models.GatewayOrder{
		OrderID:  order.ID,
		Currency: order.Currency,
		Amount:   float64(order.Amount) / 100,
		Receipt:  order.Receipt,
	}, call, nil
}

// VerifyPaymentSignature checks the checkout callback signature
// hex(HMAC-SHA256(keySecret, orderID|paymentID))
func (s *RazorpayService) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" || s.config.KeySecret == "" {
		return false
	}
	return verifyHexHMAC(s.config.KeySecret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature checks X-Razorpay-Signature over the raw body
func (s *RazorpayService) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" || s.config.WebhookSecret == "" {
		return false
	}
	return verifyHexHMAC(s.config.WebhookSecret, body, signature)
}

// SignHMAC returns the lowercase hex HMAC-SHA256 of payload
func SignHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHexHMAC(secret string, payload []byte, signature string) bool {
	expected := SignHMAC(secret, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
