package ubx

import "time"

// ParserState is the position of the frame parser within a NAV-PVT frame.
type ParserState uint8

const (
	AwaitSync1 ParserState = iota
	AwaitSync2
	AwaitClass
	AwaitID
	AwaitLenLo
	AwaitLenHi
	ReadPayload
	AwaitChecksumA
	AwaitChecksumB
)

func (s ParserState) String() string {
	switch s {
	case AwaitSync1:
		return "await-sync1"
	case AwaitSync2:
		return "await-sync2"
	case AwaitClass:
		return "await-class"
	case AwaitID:
		return "await-id"
	case AwaitLenLo:
		return "await-len-lo"
	case AwaitLenHi:
		return "await-len-hi"
	case ReadPayload:
		return "read-payload"
	case AwaitChecksumA:
		return "await-ck-a"
	case AwaitChecksumB:
		return "await-ck-b"
	default:
		return "unknown"
	}
}

// Clock supplies monotonic timestamps for fix age.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// FixListener is notified once per committed message that classifies as a
// valid fix. It runs on the Feed call stack and must not block or call Feed
// on the same parser.
type FixListener interface {
	OnFix(p *Parser)
}

// FixListenerFunc adapts a plain function to FixListener.
type FixListenerFunc func(p *Parser)

func (f FixListenerFunc) OnFix(p *Parser) { f(p) }

type Option func(*Parser)

// WithClock overrides the clock used for fix age.
func WithClock(c Clock) Option {
	return func(p *Parser) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithFixListener registers a listener at construction time.
func WithFixListener(l FixListener) Option {
	return func(p *Parser) { p.listener = l }
}

// WithStrictLength makes the parser drop frames whose declared payload length
// differs from NavPVTPayloadSize. The frame is abandoned at the second length
// byte, before any payload is consumed.
//
// By default the declared length is recorded but not checked; framing always
// uses the fixed payload size.
func WithStrictLength() Option {
	return func(p *Parser) { p.strictLength = true }
}

// Parser decodes UBX-NAV-PVT frames one byte at a time and keeps the last
// frame whose checksum verified.
//
// A Parser is not safe for concurrent use. Feed it from a single goroutine or
// guard it with a mutex.
type Parser struct {
	state ParserState

	// Working record, owned by the state machine.
	work     NavPVT
	lenLo    uint8
	count    int    // payload bytes received
	field    field  // payload field being assembled
	fieldPos uint8  // bytes of field received
	acc      uint32 // partial field value
	ckA      uint8

	// Message store.
	committed NavPVT
	verified  bool
	messages  uint32
	fixes     uint32
	lastFix   time.Time

	clock        Clock
	listener     FixListener
	strictLength bool

	body [headerSize + NavPVTPayloadSize]byte
}

// NewParser returns a parser waiting for the first sync byte.
func NewParser(opts ...Option) *Parser {
	p := &Parser{clock: realClock{}}
	for _, opt := range opts {
		opt(p)
	}
	p.work.Class = ClassNAV
	p.work.ID = IDNAVPVT
	p.lastFix = p.clock.Now()
	return p
}

// SetFixListener replaces the fix listener. nil disables notification.
func (p *Parser) SetFixListener(l FixListener) {
	p.listener = l
}

// State reports the parser's current position within a frame.
func (p *Parser) State() ParserState { return p.state }

// Write feeds every byte of b to the parser. It never fails, so a parser can
// be the destination of io.Copy.
func (p *Parser) Write(b []byte) (int, error) {
	for _, c := range b {
		p.Feed(c)
	}
	return len(b), nil
}

// Feed advances the state machine by one byte. On a verified frame the
// record is committed, and a valid fix notifies the listener before Feed
// returns.
func (p *Parser) Feed(b byte) {
	switch p.state {
	case AwaitSync1:
		if b == Sync1 {
			p.state = AwaitSync2
		}

	case AwaitSync2:
		if b == Sync2 {
			p.state = AwaitClass
		} else {
			p.state = AwaitSync1
		}

	case AwaitClass:
		if b == ClassNAV {
			p.state = AwaitID
		} else {
			p.state = AwaitSync1
		}

	case AwaitID:
		if b == IDNAVPVT {
			p.state = AwaitLenLo
		} else {
			p.state = AwaitSync1
		}

	case AwaitLenLo:
		p.lenLo = b
		p.state = AwaitLenHi

	case AwaitLenHi:
		p.work.Length = uint16(p.lenLo) | uint16(b)<<8
		if p.strictLength && p.work.Length != NavPVTPayloadSize {
			p.state = AwaitSync1
			return
		}
		p.count = 0
		p.field = 0
		p.fieldPos = 0
		p.acc = 0
		p.state = ReadPayload

	case ReadPayload:
		p.acc |= uint32(b) << (8 * p.fieldPos)
		p.fieldPos++
		if p.fieldPos == fieldWidth[p.field] {
			p.work.set(p.field, p.acc)
			p.field++
			p.fieldPos = 0
			p.acc = 0
		}
		p.count++
		if p.count == NavPVTPayloadSize {
			p.state = AwaitChecksumA
		}

	case AwaitChecksumA:
		p.ckA = b
		p.state = AwaitChecksumB

	case AwaitChecksumB:
		p.state = AwaitSync1
		p.verify(uint16(p.ckA)<<8 | uint16(b))
	}
}

func (p *Parser) verify(got uint16) {
	p.work.putBody(p.body[:])
	if Checksum(p.body[:]) != got {
		p.verified = false
		return
	}

	p.committed = p.work
	p.verified = true
	p.messages++
	if !p.IsValidFix() {
		return
	}
	p.lastFix = p.clock.Now()
	p.fixes++
	if p.listener != nil {
		p.listener.OnFix(p)
	}
}

// Record returns a copy of the last verified message. It is not necessarily
// a valid fix; see IsValidFix.
func (p *Parser) Record() NavPVT { return p.committed }

// Verified reports whether the most recent checksum check passed.
func (p *Parser) Verified() bool { return p.verified }

// IsValidFix reports whether the committed record is a usable position fix.
func (p *Parser) IsValidFix() bool {
	return IsValidFix(p.committed, p.verified)
}

// FixAge is the time since the last valid fix, or since construction when no
// fix has been seen.
func (p *Parser) FixAge() time.Duration {
	return p.clock.Now().Sub(p.lastFix)
}

// MessageCount is the number of checksum-verified messages.
func (p *Parser) MessageCount() uint32 { return p.messages }

// FixCount is the number of verified messages that were valid fixes.
func (p *Parser) FixCount() uint32 { return p.fixes }

// IsValidFix classifies a record. Dead reckoning, 2D, 3D and GNSS+DR count as
// fixes; no-fix and time-only do not. Accuracy and DOP are not considered.
func IsValidFix(rec NavPVT, verified bool) bool {
	return verified && rec.FixType != FixNone && rec.FixType != FixTimeOnly
}
