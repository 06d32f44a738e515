package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/msomdec/gymtrack/internal/domain"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate resolves a YYYY-MM-DD date or a natural-language phrase such as
// "yesterday" or "last monday" relative to now. An empty string is today.
func parseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Format(domain.DateLayout), nil
	}
	if _, err := domain.ParseDate(s); err == nil {
		return s, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return "", fmt.Errorf("%w: date %q: %v", domain.ErrInvalidInput, s, err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: unrecognized date %q", domain.ErrInvalidInput, s)
	}
	return r.Time.Format(domain.DateLayout), nil
}

func dateArg(args []string) (string, error) {
	return parseDate(strings.Join(args, " "), time.Now())
}
