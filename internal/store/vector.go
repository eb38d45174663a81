package store

import (
	"fmt"
	"strconv"
	"strings"
)

// toVectorLiteral renders a float32 slice as a pgvector literal, e.g.
// "[1.2,3.4,-0.5]".
func toVectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVectorLiteral parses pgvector's text output format "[1,2,3]" back
// into a float32 slice.
func parseVectorLiteral(raw string) []float32 {
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, _ := strconv.ParseFloat(p, 32)
		out[i] = float32(f)
	}
	return out
}

// cosineSimilarityExpr returns the SQL expression computing cosine
// similarity (1 - cosine distance) between column and the bound vector
// literal at the given placeholder position, using pgvector's <=> operator.
func cosineSimilarityExpr(column string, placeholder int) string {
	return fmt.Sprintf("1 - (%s <=> $%d)", column, placeholder)
}
