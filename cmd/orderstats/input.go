package orderstats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// readValues parses one value per line. Blank lines and text after a # are ignored. NaN, Inf, +Inf and -Inf are
// accepted.
func readValues(r io.Reader) ([]float64, error) {
	var values []float64
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		x, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values = append(values, x)
	}
	return values, scanner.Err()
}
