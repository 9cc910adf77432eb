// utilitário pequeno para formatação rápida/consistente de valores em headers/logs.
//    Evita puxar fmt só para formatação simples.

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// formatSeconds arredonda para cima: um retry-after de 200ms vira "1", nunca "0".
func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return strconv.FormatInt(int64(secs), 10)
}
