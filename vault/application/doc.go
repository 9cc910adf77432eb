// Package application contém os casos de uso do vault: validação do payload,
// selagem em repouso e log das operações. Não conhece net/http.
package application
