package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// postalCodePattern matches Japanese postal codes (NNN-NNNN or NNNNNNN)
	postalCodePattern = regexp.MustCompile(`^\d{3}-?\d{4}$`)
	// phonePattern matches domestic phone numbers with optional hyphens
	phonePattern = regexp.MustCompile(`^0\d{1,4}-?\d{1,4}-?\d{3,4}$`)
)

// Address is an immutable value object representing a Japanese shipping address
type Address struct {
	postalCode string
	prefecture string
	city       string
	line1      string
	line2      string
	recipient  string
	phone      string
}

// AddressOption is a functional option for building an Address
type AddressOption func(*Address)

// WithLine2 sets the building / room line
func WithLine2(line2 string) AddressOption {
	return func(a *Address) {
		a.line2 = strings.TrimSpace(line2)
	}
}

// WithPhone sets the recipient phone number
func WithPhone(phone string) AddressOption {
	return func(a *Address) {
		a.phone = strings.TrimSpace(phone)
	}
}

// NewAddress creates a new Address value object.
// Postal code, prefecture, city, line1 and recipient are required.
func NewAddress(postalCode, prefecture, city, line1, recipient string, opts ...AddressOption) (Address, error) {
	a := Address{
		postalCode: strings.TrimSpace(postalCode),
		prefecture: strings.TrimSpace(prefecture),
		city:       strings.TrimSpace(city),
		line1:      strings.TrimSpace(line1),
		recipient:  strings.TrimSpace(recipient),
	}
	for _, opt := range opts {
		opt(&a)
	}
	if err := a.validate(); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (a Address) validate() error {
	if a.postalCode == "" {
		return errors.New("postal code cannot be empty")
	}
	if !postalCodePattern.MatchString(a.postalCode) {
		return fmt.Errorf("invalid postal code format: %s", a.postalCode)
	}
	if a.prefecture == "" {
		return errors.New("prefecture cannot be empty")
	}
	if a.city == "" {
		return errors.New("city cannot be empty")
	}
	if a.line1 == "" {
		return errors.New("address line cannot be empty")
	}
	if a.recipient == "" {
		return errors.New("recipient name cannot be empty")
	}
	if a.phone != "" && !phonePattern.MatchString(a.phone) {
		return fmt.Errorf("invalid phone number format: %s", a.phone)
	}
	return nil
}

// PostalCode returns the postal code
func (a Address) PostalCode() string { return a.postalCode }

// Prefecture returns the prefecture
func (a Address) Prefecture() string { return a.prefecture }

// City returns the city or ward
func (a Address) City() string { return a.city }

// Line1 returns the street address line
func (a Address) Line1() string { return a.line1 }

// Line2 returns the building / room line, may be empty
func (a Address) Line2() string { return a.line2 }

// Recipient returns the recipient name
func (a Address) Recipient() string { return a.recipient }

// Phone returns the recipient phone number, may be empty
func (a Address) Phone() string { return a.phone }

// IsZero returns true if the address has not been set
func (a Address) IsZero() bool {
	return a == Address{}
}

// Equals returns true if both addresses are field-wise equal
func (a Address) Equals(other Address) bool {
	return a == other
}

// NormalizedPostalCode returns the postal code in NNN-NNNN form
func (a Address) NormalizedPostalCode() string {
	digits := strings.ReplaceAll(a.postalCode, "-", "")
	if len(digits) != 7 {
		return a.postalCode
	}
	return digits[:3] + "-" + digits[3:]
}

// String returns the address formatted in Japanese order
func (a Address) String() string {
	var b strings.Builder
	b.WriteString("〒" + a.NormalizedPostalCode())
	b.WriteString(" " + a.prefecture + a.city + a.line1)
	if a.line2 != "" {
		b.WriteString(" " + a.line2)
	}
	b.WriteString(" " + a.recipient)
	return b.String()
}

type addressJSON struct {
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressJSON{
		PostalCode: a.postalCode,
		Prefecture: a.prefecture,
		City:       a.city,
		Line1:      a.line1,
		Line2:      a.line2,
		Recipient:  a.recipient,
		Phone:      a.phone,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Address) UnmarshalJSON(data []byte) error {
	var v addressJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	addr := Address{
		postalCode: v.PostalCode,
		prefecture: v.Prefecture,
		city:       v.City,
		line1:      v.Line1,
		line2:      v.Line2,
		recipient:  v.Recipient,
		phone:      v.Phone,
	}
	if err := addr.validate(); err != nil {
		return err
	}
	*a = addr
	return nil
}

// Value implements driver.Valuer, stores the address as JSON
func (a Address) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	return json.Marshal(addressJSON{
		PostalCode: a.postalCode,
		Prefecture: a.prefecture,
		City:       a.city,
		Line1:      a.line1,
		Line2:      a.line2,
		Recipient:  a.recipient,
		Phone:      a.phone,
	})
}

// Scan implements sql.Scanner
func (a *Address) Scan(value any) error {
	if value == nil {
		*a = Address{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Address", value)
	}
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	return a.UnmarshalJSON(data)
}
