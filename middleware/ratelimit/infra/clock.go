package infra

import "time"

// Clock fornece o "agora" para os limiters. Testes injetam um relógio fake.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
