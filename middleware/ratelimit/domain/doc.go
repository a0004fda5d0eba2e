// Package domain define contratos e tipos de domínio para admissão (rate limit),
// limite de concorrência e estatísticas de decisão.
//
// Este pacote não depende de net/http, QUIC nem de implementações concretas.
// Os mesmos contratos servem a janela deslizante por identidade usada pelo
// orquestrador e ao token bucket por host usado nas bordas de transporte.
package domain
