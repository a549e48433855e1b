package persistence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// nextBusinessNumber produces the next PREFIX-YYYY-NNNNN number for a
// table by reading the highest number issued this year. Callers run it
// inside the transaction that inserts the new row; the unique index on
// the number column backstops concurrent issuers.
func nextBusinessNumber(db *gorm.DB, model interface{}, column, prefix string) (string, error) {
	year := time.Now().Year()
	stem := fmt.Sprintf("%s-%d-", prefix, year)

	var last string
	err := db.Model(model).
		Select(column).
		Where(column+" LIKE ?", stem+"%").
		Order(column + " DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", fmt.Errorf("failed to read last %s number: %w", prefix, err)
	}

	seq := 1
	if last != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(last, stem))
		if err != nil {
			return "", fmt.Errorf("malformed %s number %q: %w", prefix, last, err)
		}
		seq = n + 1
	}

	return fmt.Sprintf("%s%05d", stem, seq), nil
}
