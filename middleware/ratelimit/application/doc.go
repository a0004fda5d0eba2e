// Package application contém os casos de uso (regras de aplicação) para admissão
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece HTTP nem QUIC.
// Ex.: Service.Decide(key) retorna uma Decision (allow/deny + retry-after + cota).
package application
