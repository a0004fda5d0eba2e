// Package application orquestra cada operação do serviço.
//
// Todo request passa pelo mesmo pipeline, na mesma ordem:
// autenticação -> validação -> rate limit -> chamada de negócio -> métricas.
// Os transportes (RPC e stream) só traduzem entrada/saída; nenhuma regra de
// negócio mora neles.
package application
