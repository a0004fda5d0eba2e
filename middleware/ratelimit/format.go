// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.
//    Padroniza a formatação do float (strconv.FormatFloat), evitando notação científica em
//    valores comuns.

package ratelimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
