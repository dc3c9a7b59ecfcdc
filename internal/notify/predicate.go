package notify

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/devblac/tx-ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// Predicate evaluates whether an entry's fields satisfy a condition.
type Predicate func(fields map[string]any) bool

// CompilePredicates parses simple expressions into executable predicates.
// Supported operators: ==, !=, >, <, >=, <=, in, contains.
// Fields: hash, from, to, amount, asset, block, status.
// Examples:
//
//	"amount >= 1_000"
//	"asset in USDT,USDC"
//	"to == 0xabc..."
func CompilePredicates(exprs []string) ([]Predicate, error) {
	var preds []Predicate
	for _, raw := range exprs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := compile(raw)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compile(expr string) (Predicate, error) {
	if strings.Contains(expr, " in ") {
		parts := strings.SplitN(expr, " in ", 2)
		field, err := checkField(parts[0], expr)
		if err != nil {
			return nil, err
		}
		values := make(map[string]struct{})
		for _, v := range strings.Split(parts[1], ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			values[normalize(field, v)] = struct{}{}
		}
		return func(fields map[string]any) bool {
			_, hit := values[fmt.Sprint(fields[field])]
			return hit
		}, nil
	}

	if strings.Contains(expr, " contains ") {
		parts := strings.SplitN(expr, " contains ", 2)
		field, err := checkField(parts[0], expr)
		if err != nil {
			return nil, err
		}
		needle := normalize(field, strings.TrimSpace(parts[1]))
		return func(fields map[string]any) bool {
			return strings.Contains(fmt.Sprint(fields[field]), needle)
		}, nil
	}

	var op string
	switch {
	case strings.Contains(expr, "=="):
		op = "=="
	case strings.Contains(expr, "!="):
		op = "!="
	case strings.Contains(expr, ">="):
		op = ">="
	case strings.Contains(expr, "<="):
		op = "<="
	case strings.Contains(expr, ">"):
		op = ">"
	case strings.Contains(expr, "<"):
		op = "<"
	default:
		return nil, fmt.Errorf("unsupported expression: %s", expr)
	}

	parts := strings.SplitN(expr, op, 2)
	field, err := checkField(parts[0], expr)
	if err != nil {
		return nil, err
	}
	rhsRaw := strings.TrimSpace(parts[1])

	if numericFields[field] {
		rhs, ok := parseNumber(rhsRaw)
		if !ok {
			return nil, fmt.Errorf("field %s needs a numeric operand: %s", field, expr)
		}
		return func(fields map[string]any) bool {
			lhs, ok := toNumber(fields[field])
			if !ok {
				return false
			}
			c := lhs.Cmp(rhs)
			switch op {
			case "==":
				return c == 0
			case "!=":
				return c != 0
			case ">":
				return c > 0
			case "<":
				return c < 0
			case ">=":
				return c >= 0
			default:
				return c <= 0
			}
		}, nil
	}

	if op != "==" && op != "!=" {
		return nil, fmt.Errorf("operator %s not supported on field %s", op, field)
	}
	rhs := normalize(field, rhsRaw)
	return func(fields map[string]any) bool {
		lhs := fmt.Sprint(fields[field])
		if op == "==" {
			return lhs == rhs
		}
		return lhs != rhs
	}, nil
}

var knownFields = map[string]bool{
	"hash": true, "from": true, "to": true, "amount": true,
	"asset": true, "block": true, "status": true,
}

var numericFields = map[string]bool{"amount": true, "block": true}

func checkField(raw, expr string) (string, error) {
	field := strings.TrimSpace(raw)
	if !knownFields[field] {
		return "", fmt.Errorf("unknown field %q in expression: %s", field, expr)
	}
	return field, nil
}

// Entry addresses and hashes are stored lower-cased; operands are folded to match.
func normalize(field, v string) string {
	switch field {
	case "hash", "from", "to":
		return strings.ToLower(v)
	}
	return v
}

// fieldsOf exposes the entry to predicates.
func fieldsOf(e ledger.Entry) map[string]any {
	return map[string]any{
		"hash":   e.Hash,
		"from":   e.From,
		"to":     e.To,
		"amount": e.Amount,
		"asset":  e.AssetSymbol,
		"block":  e.BlockNumber,
		"status": string(e.Status),
	}
}

// parseNumber accepts plain decimals, exponents and "_" separators: "100", "1e6", "1_000.5".
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	d, err := decimal.NewFromString(s)
	return d, err == nil
}

func toNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		return parseNumber(n)
	default:
		return decimal.Decimal{}, false
	}
}

// TokenBucket is a simple per-sink rate limiter, safe for concurrent use.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64 // tokens per second

	tokens     float64
	lastUpdate time.Time
}

// NewTokenBucket creates a token bucket with capacity and refill rate.
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	return &TokenBucket{
		capacity: capacity,
		rate:     rate,
		tokens:   capacity,
	}
}

// Allow consumes one token if available, refilling based on elapsed time.
func (b *TokenBucket) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastUpdate.IsZero() {
		b.lastUpdate = now
	}
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
		b.lastUpdate = now
	}
	if b.tokens >= 1 {
		b.tokens -= 1
		return true
	}
	return false
}
