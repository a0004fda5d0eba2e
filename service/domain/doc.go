// Package domain define os registros, requisições/respostas, a taxonomia de erros
// e os contratos dos colaboradores externos (persistência, gateway de
// notificações, verificação de credenciais) do núcleo de atendimento.
//
// Nada aqui depende de transporte ou de banco concreto.
package domain
