package dma

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/softdma/pkg"
)

// ChannelID identifies one channel of one DMA port.
type ChannelID struct {
	Port    int
	Channel int
}

// String returns the channel identity, e.g. "dma2.ch5".
func (id ChannelID) String() string {
	return fmt.Sprintf("dma%d.ch%d", id.Port, id.Channel)
}

// bit returns the channel's position in its port's status bitmaps.
func (id ChannelID) bit() uint32 {
	return 1 << id.Channel
}

// Token is the ownership capability of one channel. Exactly one live
// Token or one live transfer exists per channel at any time: [Start]
// consumes the token, and a fresh one is returned with the transfer's
// [Result].
type Token struct {
	engine *Engine
	id     ChannelID
	spent  atomic.Bool
}

func newToken(e *Engine, id ChannelID) *Token {
	return &Token{engine: e, id: id}
}

// ID returns the channel the token owns.
func (t *Token) ID() ChannelID {
	return t.id
}

// Valid reports whether the token can still start a transfer.
func (t *Token) Valid() bool {
	return t != nil && t.engine != nil && !t.spent.Load()
}

// String returns the owned channel identity.
func (t *Token) String() string {
	return t.id.String()
}

// check panics unless the token belongs to an engine and is unspent.
func (t *Token) check() {
	if t == nil || t.engine == nil {
		fatal(fmt.Errorf("%w: token not issued by an engine", pkg.ErrInvalidChannel))
	}
	if t.spent.Load() {
		fatal(fmt.Errorf("%w: %s", pkg.ErrTokenSpent, t.id))
	}
}
