package verified

import (
	"os"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/lotto-feed/internal/domain/draw"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
)

const maxFileSize = 4 << 20

// LoadFile reads a JSON array of verified draws used to extend the emergency
// generator. An empty path yields no rows. Rows that fail validation are
// dropped and logged; duplicate rounds keep the last entry.
func LoadFile(path string, logger *logging.Logger) ([]draw.VerifiedDraw, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, crerr.Wrapf(err, "stat verified draws file %s", path)
	}
	if info.Size() > maxFileSize {
		return nil, crerr.Newf("verified draws file %s exceeds %d bytes", path, maxFileSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, crerr.Wrapf(err, "read verified draws file %s", path)
	}
	return Parse(raw, logger)
}

func Parse(raw []byte, logger *logging.Logger) ([]draw.VerifiedDraw, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var rows []draw.VerifiedDraw
	if err := sonic.ConfigStd.Unmarshal(raw, &rows); err != nil {
		return nil, crerr.Wrap(err, "decode verified draws")
	}

	byRound := make(map[int]draw.VerifiedDraw, len(rows))
	for _, row := range rows {
		candidate := draw.Result{Round: row.Round, Numbers: row.Numbers, Bonus: row.Bonus}.Normalize()
		if err := candidate.Validate(); err != nil {
			logger.Warn("skip invalid verified draw", "round", row.Round, "error", err)
			continue
		}
		row.Numbers = candidate.Numbers
		byRound[row.Round] = row
	}

	out := make([]draw.VerifiedDraw, 0, len(byRound))
	for _, row := range byRound {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out, nil
}
