package shipping

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/komono/backend/internal/domain/shared"
	"github.com/komono/backend/internal/domain/shared/valueobject"
	"github.com/komono/backend/internal/domain/shipping"
)

const (
	yamatoAPIBaseURL        = "https://api.yamato.example.jp/v1"
	yamatoSandboxAPIBaseURL = "https://sandbox.api.yamato.example.jp/v1"
	yamatoShipmentsPath     = "/shipments"
)

// YamatoConfig contains credentials for the Yamato carrier API
type YamatoConfig struct {
	APIKey        string
	WebhookSecret string
	IsSandbox     bool
}

// Validate validates the configuration
func (c *YamatoConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("yamato: missing API key")
	}
	if c.WebhookSecret == "" {
		return errors.New("yamato: missing webhook secret")
	}
	return nil
}

// YamatoAdapter implements the Carrier interface for Yamato Transport.
// Rates are computed locally from the published tariff table; shipment
// registration and tracking go through the carrier API.
type YamatoAdapter struct {
	config     *YamatoConfig
	httpClient *http.Client
}

// NewYamatoAdapter creates a new Yamato adapter
func NewYamatoAdapter(config *YamatoConfig) (*YamatoAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &YamatoAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Name identifies the carrier in shipment records
func (a *YamatoAdapter) Name() string {
	return "yamato"
}

// GetRate quotes the fee from the tariff table. Size class comes from
// the larger of the dimensional sum and the weight bracket, matching
// how the carrier actually bills.
func (a *YamatoAdapter) GetRate(ctx context.Context, req *shipping.RateRequest) (*shipping.RateQuote, error) {
	base := baseFee(sizeClass(req.Package), zoneFor(req.ToPrefecture))

	surcharge := int64(0)
	switch req.ServiceType {
	case shipping.ServiceExpress:
		surcharge = 220
	case shipping.ServiceCool:
		surcharge = 330
	}

	codFee := int64(0)
	if req.IsCOD {
		codFee = codFeeFor(req.CODAmount.IntPart())
	}

	fees := shipping.FeeBreakdown{
		BaseFee:   valueobject.NewMoneyJPYFromInt(base),
		Surcharge: valueobject.NewMoneyJPYFromInt(surcharge),
		CODFee:    valueobject.NewMoneyJPYFromInt(codFee),
		Total:     valueobject.NewMoneyJPYFromInt(base + surcharge + codFee),
	}

	days := 1
	if zoneFor(req.ToPrefecture) >= 2 {
		days = 2
	}
	if req.ServiceType == shipping.ServiceExpress {
		days = 1
	}

	return &shipping.RateQuote{
		Fees:          fees,
		EstimatedDays: days,
		ServiceType:   req.ServiceType,
	}, nil
}

// RegisterShipment books the package with the carrier
func (a *YamatoAdapter) RegisterShipment(ctx context.Context, req *shipping.ShipmentRequest) (*shipping.ShipmentRegistration, error) {
	quote, err := a.GetRate(ctx, &shipping.RateRequest{
		ServiceType:    req.ServiceType,
		Package:        req.Package,
		FromPrefecture: req.Sender.Prefecture(),
		ToPrefecture:   req.Receiver.Prefecture(),
		IsCOD:          req.IsCOD,
		CODAmount:      req.CODAmount,
	})
	if err != nil {
		return nil, err
	}

	body := yamatoShipmentRequest{
		ReferenceNumber: req.ShipmentNumber,
		ServiceCode:     serviceCode(req.ServiceType),
		Sender:          toYamatoAddress(req.Sender),
		Receiver:        toYamatoAddress(req.Receiver),
		SizeClass:       sizeClass(req.Package),
		WeightGrams:     req.Package.WeightGrams,
		IsCOD:           req.IsCOD,
		CODAmount:       req.CODAmount.IntPart(),
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("yamato: failed to marshal request: %w", err)
	}

	respBody, err := a.doRequest(ctx, http.MethodPost, yamatoShipmentsPath, bodyBytes)
	if err != nil {
		return nil, err
	}

	var resp yamatoShipmentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("yamato: failed to parse response: %w", err)
	}

	return &shipping.ShipmentRegistration{
		TrackingNumber: resp.TrackingNumber,
		Fees:           quote.Fees,
		LabelURL:       resp.LabelURL,
	}, nil
}

// VerifyWebhook checks the tracking webhook HMAC against the secret
func (a *YamatoAdapter) VerifyWebhook(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(a.config.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return shared.ErrInvalidSignature
	}
	return nil
}

// ParseTrackingPayload normalizes a verified webhook payload
func (a *YamatoAdapter) ParseTrackingPayload(payload []byte) (*shipping.TrackingNotification, error) {
	var event yamatoTrackingEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("yamato: failed to parse tracking payload: %w", err)
	}
	if event.TrackingNumber == "" || event.EventID == "" {
		return nil, errors.New("yamato: tracking payload missing tracking_number or event_id")
	}

	status, err := mapYamatoStatus(event.StatusCode)
	if err != nil {
		return nil, err
	}

	occurredAt, err := time.Parse(time.RFC3339, event.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("yamato: bad event timestamp %q: %w", event.OccurredAt, err)
	}

	return &shipping.TrackingNotification{
		TrackingNumber: event.TrackingNumber,
		CarrierEventID: event.EventID,
		Status:         status,
		Description:    event.Description,
		Location:       event.Location,
		OccurredAt:     occurredAt,
	}, nil
}

func (a *YamatoAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	baseURL := yamatoAPIBaseURL
	if a.config.IsSandbox {
		baseURL = yamatoSandboxAPIBaseURL
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("yamato: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Yamato-API-Key", a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCarrierUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yamato: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", shared.ErrCarrierUnavailable, resp.StatusCode)
	}
	return respBody, nil
}

// sizeClass maps a package onto the 60..160 tariff classes by the
// larger of the dimensional sum and the weight bracket
func sizeClass(pkg shipping.PackageSize) int {
	dims := pkg.TotalCM()

	bySize := 160
	switch {
	case dims <= 60:
		bySize = 60
	case dims <= 80:
		bySize = 80
	case dims <= 100:
		bySize = 100
	case dims <= 120:
		bySize = 120
	case dims <= 140:
		bySize = 140
	}

	byWeight := 160
	switch {
	case pkg.WeightGrams <= 2000:
		byWeight = 60
	case pkg.WeightGrams <= 5000:
		byWeight = 80
	case pkg.WeightGrams <= 10000:
		byWeight = 100
	case pkg.WeightGrams <= 15000:
		byWeight = 120
	case pkg.WeightGrams <= 20000:
		byWeight = 140
	}

	if byWeight > bySize {
		return byWeight
	}
	return bySize
}

// zoneFor groups prefectures into tariff zones from the Tokyo warehouse:
// 0 Kanto, 1 adjacent regions, 2 remote, 3 Okinawa
func zoneFor(prefecture string) int {
	switch prefecture {
	case "東京都", "神奈川県", "埼玉県", "千葉県", "茨城県", "栃木県", "群馬県", "山梨県":
		return 0
	case "宮城県", "福島県", "山形県", "新潟県", "長野県", "静岡県", "愛知県", "岐阜県", "三重県",
		"富山県", "石川県", "福井県", "大阪府", "京都府", "兵庫県", "奈良県", "滋賀県", "和歌山県":
		return 1
	case "沖縄県":
		return 3
	default:
		return 2
	}
}

// baseFee is the tariff table: size class x zone
func baseFee(size, zone int) int64 {
	table := map[int][4]int64{
		60:  {930, 1010, 1150, 1460},
		80:  {1150, 1230, 1390, 1970},
		100: {1390, 1470, 1630, 2490},
		120: {1610, 1690, 1850, 3000},
		140: {1850, 1930, 2110, 3530},
		160: {2070, 2160, 2340, 4060},
	}
	fees, ok := table[size]
	if !ok {
		fees = table[160]
	}
	return fees[zone]
}

// codFeeFor is the cash-on-delivery handling fee bracket
func codFeeFor(amount int64) int64 {
	switch {
	case amount <= 10000:
		return 330
	case amount <= 30000:
		return 440
	case amount <= 100000:
		return 660
	default:
		return 1100
	}
}

func serviceCode(s shipping.ServiceType) string {
	switch s {
	case shipping.ServiceExpress:
		return "EXP"
	case shipping.ServiceCool:
		return "COOL"
	default:
		return "STD"
	}
}

func toYamatoAddress(addr valueobject.Address) yamatoAddress {
	return yamatoAddress{
		PostalCode: addr.NormalizedPostalCode(),
		Prefecture: addr.Prefecture(),
		City:       addr.City(),
		Line1:      addr.Line1(),
		Line2:      addr.Line2(),
		Name:       addr.Recipient(),
		Phone:      addr.Phone(),
	}
}

func mapYamatoStatus(code string) (shipping.Status, error) {
	switch code {
	case "PICKUP":
		return shipping.StatusPickedUp, nil
	case "TRANSIT":
		return shipping.StatusInTransit, nil
	case "OUT_FOR_DELIVERY":
		return shipping.StatusOutForDelivery, nil
	case "DELIVERED":
		return shipping.StatusDelivered, nil
	case "ABSENCE", "FAILED":
		return shipping.StatusFailed, nil
	case "RETURNED":
		return shipping.StatusReturned, nil
	default:
		return "", fmt.Errorf("yamato: unknown status code %q", code)
	}
}

var _ shipping.Carrier = (*YamatoAdapter)(nil)
