// Package room implements the match session engine: the single-writer
// state machine that drives one two-player card battle through its turn
// phases, resolves draws and battles, and records every action in the
// match's log.
package room

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/duelforge/arena-server-go/internal/actionlog"
	"github.com/duelforge/arena-server-go/internal/battle"
	"github.com/duelforge/arena-server-go/internal/card"
)

var (
	// ErrMatchFinished indicates a command arrived after the room reached
	// its terminal state.
	ErrMatchFinished = errors.New("match already finished")

	// ErrMatchNotStarted indicates a command arrived before both
	// participants were seated.
	ErrMatchNotStarted = errors.New("match not started")

	// ErrNotYourTurn indicates a player acted out of turn.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrWrongPhase indicates a command that is not legal in the current
	// phase.
	ErrWrongPhase = errors.New("wrong phase for this action")

	// ErrInvalidBattleDeclaration indicates a pairing whose attacker or
	// defender is not on the right board.
	ErrInvalidBattleDeclaration = errors.New("invalid battle declaration")

	// ErrInvalidPlay indicates a play of a card that is not in the acting
	// player's hand.
	ErrInvalidPlay = errors.New("invalid card play")

	// ErrUnknownPlayer indicates a player id that holds no seat in the room.
	ErrUnknownPlayer = errors.New("player not in this room")
)

// State enumerates the lifecycle states of a room.
type State int

const (
	StateWaitingForPlayers State = iota
	StateInProgress
	StateFinished
)

var stateNames = map[State]string{
	StateWaitingForPlayers: "WAITING_FOR_PLAYERS",
	StateInProgress:        "IN_PROGRESS",
	StateFinished:          "FINISHED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATE_%d", int(s))
}

// Phase enumerates the turn phases of an in-progress match.
type Phase int

const (
	PhaseDraw Phase = iota
	PhaseMain
	PhaseBattle
	PhaseEnd
)

var phaseNames = map[Phase]string{
	PhaseDraw:   "DRAW",
	PhaseMain:   "MAIN",
	PhaseBattle: "BATTLE",
	PhaseEnd:    "END",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Config carries the tunable match rules.
type Config struct {
	OpeningHandSize int
	StartingLife    int
	PhaseTimeout    time.Duration // zero disables the phase clock
}

// DefaultConfig returns the standard match rules.
func DefaultConfig() Config {
	return Config{
		OpeningHandSize: 5,
		StartingLife:    20,
		PhaseTimeout:    60 * time.Second,
	}
}

// Seat describes one participant joining a room: an identity, a built
// deck, and the listener that represents the connected player.
type Seat struct {
	PlayerID string
	Deck     *card.Deck
	Listener EventListener
}

// Participant is one seat's live state. Mutated only by the room.
type Participant struct {
	PlayerID string
	Deck     *card.Deck
	Hand     []*card.Instance
	Board    []*card.Instance
	Life     int

	listener EventListener
}

// Pairing declares one attack. DefenderID names an opposing board card;
// an empty DefenderID attacks the opposing participant directly.
type Pairing struct {
	AttackerID string `json:"attacker_id"`
	DefenderID string `json:"defender_id,omitempty"`
}

// FinishFunc is invoked exactly once when a room reaches Finished, after
// the log has been finalized. It runs outside the room lock.
type FinishFunc func(result MatchResult, log *actionlog.Log)

// Room is the state machine for one match. All state-mutating commands
// are serialized on a single mutex; the phase timer's callback funnels
// through the same lock, so a timeout can never interleave with a
// command in flight.
type Room struct {
	id     string
	cfg    Config
	logger *zap.Logger
	rng    *rand.Rand

	mu           sync.Mutex
	state        State
	phase        Phase
	turn         int
	activeIdx    int
	participants [2]*Participant
	log          *actionlog.Log
	timer        *PhaseTimer
	seq          uint64 // bumped on every timed phase entry; stale callbacks are dropped
	result       *MatchResult
	onFinish     FinishFunc
}

// New creates a room in the WaitingForPlayers state. The random source
// drives deck shuffling and is injected so matches are reproducible.
func New(id string, cfg Config, rng *rand.Rand, logger *zap.Logger) *Room {
	return &Room{
		id:     id,
		cfg:    cfg,
		logger: logger,
		rng:    rng,
		state:  StateWaitingForPlayers,
		timer:  NewPhaseTimer(),
	}
}

// SetFinishFunc registers the finish callback. Must be called before Start.
func (r *Room) SetFinishFunc(fn FinishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinish = fn
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// State returns the room's lifecycle state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CurrentPhase returns the phase in progress.
func (r *Room) CurrentPhase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Turn returns the current turn number (1-based).
func (r *Room) Turn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}

// ActivePlayerID returns the player whose turn it is.
func (r *Room) ActivePlayerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateWaitingForPlayers {
		return ""
	}
	return r.active().PlayerID
}

// HasPlayer reports whether the given player holds a seat in this room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.participantLocked(playerID)
	return err == nil
}

// Start seats both participants, shuffles their decks, deals opening
// hands and advances into turn 1's Draw phase. Valid only once, from
// WaitingForPlayers.
func (r *Room) Start(home, away Seat) error {
	r.mu.Lock()

	if r.state != StateWaitingForPlayers {
		r.mu.Unlock()
		return fmt.Errorf("room %s already started", r.id)
	}
	if home.PlayerID == away.PlayerID {
		r.mu.Unlock()
		return fmt.Errorf("participants must be distinct, got %s twice", home.PlayerID)
	}

	for i, seat := range []Seat{home, away} {
		seat.Deck.Shuffle(r.rng)
		r.participants[i] = &Participant{
			PlayerID: seat.PlayerID,
			Deck:     seat.Deck,
			Hand:     make([]*card.Instance, 0, r.cfg.OpeningHandSize),
			Board:    make([]*card.Instance, 0),
			Life:     r.cfg.StartingLife,
			listener: seat.Listener,
		}
	}

	r.log = actionlog.New(r.id, fmt.Sprintf("%s vs %s", home.PlayerID, away.PlayerID))
	r.log.AppendRoot(fmt.Sprintf("match started: %s vs %s", home.PlayerID, away.PlayerID))

	r.state = StateInProgress
	r.turn = 1
	r.activeIdx = 0
	r.phase = PhaseDraw

	// Opening hands are dealt before the first Draw phase begins.
	type opening struct {
		p     *Participant
		drawn []*card.Instance
	}
	openings := make([]opening, 0, 2)
	for _, p := range r.participants {
		drawn, err := p.Deck.Draw(r.cfg.OpeningHandSize)
		if err != nil {
			r.mu.Unlock()
			return fmt.Errorf("dealing opening hand for %s: %w", p.PlayerID, err)
		}
		p.Hand = append(p.Hand, drawn...)
		r.log.AppendRoot(fmt.Sprintf("%s drew opening hand of %d", p.PlayerID, len(drawn)))
		openings = append(openings, opening{p: p, drawn: drawn})
	}

	r.log.AppendRoot(fmt.Sprintf("turn %d: %s to draw", r.turn, r.active().PlayerID))
	r.restartTimerLocked()

	events := make([]func(), 0, 2)
	for _, o := range openings {
		events = append(events, r.drawEventsLocked(o.p, o.drawn))
	}
	r.mu.Unlock()

	for _, emit := range events {
		emit()
	}

	r.logger.Info("match started",
		zap.String("room_id", r.id),
		zap.String("home", home.PlayerID),
		zap.String("away", away.PlayerID),
		zap.Int("opening_hand", r.cfg.OpeningHandSize),
	)
	return nil
}

// Draw performs the active player's draw for the turn and advances the
// room from Draw into Main. An empty draw pile is a loss for the drawing
// player, not an engine fault.
func (r *Room) Draw(playerID string) error {
	r.mu.Lock()

	if err := r.checkCommandLocked(playerID, PhaseDraw); err != nil {
		r.mu.Unlock()
		return err
	}

	emit, err := r.performDrawLocked()
	r.mu.Unlock()

	if emit != nil {
		emit()
	}
	return err
}

// performDrawLocked executes the Draw-phase transition for the active
// player and returns the deferred listener notifications. On deck
// exhaustion the match finishes and a nil emit is returned.
func (r *Room) performDrawLocked() (func(), error) {
	active := r.active()

	drawn, err := active.Deck.Draw(1)
	if err != nil {
		if errors.Is(err, card.ErrEmptyDrawPile) {
			r.log.AppendRoot(fmt.Sprintf("%s cannot draw: deck exhausted", active.PlayerID))
			r.finishLocked(r.opponent().PlayerID, active.PlayerID, ReasonDeckExhausted)
			return nil, nil
		}
		return nil, err
	}

	active.Hand = append(active.Hand, drawn...)
	r.log.AppendRoot(fmt.Sprintf("turn %d: %s drew a card (%d left in pile)",
		r.turn, active.PlayerID, active.Deck.DrawPileSize()))

	r.phase = PhaseMain
	r.restartTimerLocked()

	return r.drawEventsLocked(active, drawn), nil
}

// PlayCard moves a card from the active player's hand onto their board.
// Valid during the Main phase. Cost is recorded on the instance but not
// enforced; the match rules carry no resource system.
func (r *Room) PlayCard(playerID, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkCommandLocked(playerID, PhaseMain); err != nil {
		return err
	}

	active := r.active()
	idx := -1
	for i, inst := range active.Hand {
		if inst.ID == instanceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: card %s is not in %s's hand", ErrInvalidPlay, instanceID, playerID)
	}

	inst := active.Hand[idx]
	active.Hand = append(active.Hand[:idx], active.Hand[idx+1:]...)
	inst.Zone = card.ZoneBoard
	active.Board = append(active.Board, inst)

	r.log.AppendRoot(fmt.Sprintf("turn %d: %s played %s", r.turn, playerID, inst.Name))
	return nil
}

// DeclareBattle moves the room from Main through Battle into End and on
// to the next turn's Draw phase. Every pairing is validated before any
// resolution starts; a single invalid pairing rejects the whole
// declaration and leaves the state machine unchanged.
func (r *Room) DeclareBattle(playerID string, pairings []Pairing) error {
	r.mu.Lock()

	if err := r.checkCommandLocked(playerID, PhaseMain); err != nil {
		r.mu.Unlock()
		return err
	}

	if err := r.validatePairingsLocked(pairings); err != nil {
		r.mu.Unlock()
		return err
	}

	emits := r.resolveBattleLocked(pairings)
	r.mu.Unlock()

	for _, emit := range emits {
		emit()
	}
	return nil
}

// ReplaceListener swaps the transport behind a seat, used when a player
// reconnects mid-match. Events emitted after the swap reach only the new
// listener.
func (r *Room) ReplaceListener(playerID string, listener EventListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.participantLocked(playerID)
	if err != nil {
		return err
	}
	p.listener = listener
	return nil
}

// Close stops the room's phase clock and rejects all further commands,
// without producing a result or running the finish callback. Used on
// server shutdown for matches that never completed; closing a finished
// room is a no-op.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateFinished {
		return
	}
	r.state = StateFinished
	r.seq++
	r.timer.Cancel()
}

// Forfeit concedes the match for the given player from any phase.
func (r *Room) Forfeit(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateWaitingForPlayers:
		return ErrMatchNotStarted
	case StateFinished:
		return ErrMatchFinished
	}

	p, err := r.participantLocked(playerID)
	if err != nil {
		return err
	}

	r.log.AppendRoot(fmt.Sprintf("%s forfeited on turn %d", playerID, r.turn))
	r.finishLocked(r.opponentOf(p).PlayerID, playerID, ReasonForfeit)
	return nil
}

// Result returns the match result once the room is Finished.
func (r *Room) Result() (MatchResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return MatchResult{}, false
	}
	return *r.result, true
}

// Log returns the room's action log. Callers must not touch it before
// the room is Finished.
func (r *Room) Log() *actionlog.Log {
	return r.log
}

// validatePairingsLocked checks every declared pairing: the attacker must
// be on the active player's board and the defender, when named, on the
// opponent's board.
func (r *Room) validatePairingsLocked(pairings []Pairing) error {
	active := r.active()
	opponent := r.opponent()

	for _, pairing := range pairings {
		if findOnBoard(active.Board, pairing.AttackerID) == nil {
			return fmt.Errorf("%w: attacker %s is not on %s's board",
				ErrInvalidBattleDeclaration, pairing.AttackerID, active.PlayerID)
		}
		if pairing.DefenderID == "" {
			continue
		}
		if findOnBoard(opponent.Board, pairing.DefenderID) == nil {
			return fmt.Errorf("%w: defender %s is not on %s's board",
				ErrInvalidBattleDeclaration, pairing.DefenderID, opponent.PlayerID)
		}
	}
	return nil
}

// resolveBattleLocked runs the Battle phase for the already-validated
// pairings, then the End phase and the hand-off to the next turn. It
// returns the listener notifications to be emitted outside the lock.
func (r *Room) resolveBattleLocked(pairings []Pairing) []func() {
	active := r.active()
	opponent := r.opponent()

	r.phase = PhaseBattle
	r.timer.Cancel()

	battleRoot := r.log.AppendRoot(fmt.Sprintf("turn %d: battle phase (%d pairings)", r.turn, len(pairings)))

	emits := make([]func(), 0, len(pairings))
	for _, pairing := range pairings {
		attacker := findOnBoard(active.Board, pairing.AttackerID)
		if attacker == nil {
			// Destroyed by an earlier pairing this phase; the attack fizzles.
			r.log.AppendChild(battleRoot.ID, fmt.Sprintf("%s no longer on the board, attack skipped", pairing.AttackerID))
			continue
		}

		var ev BattleResult
		if pairing.DefenderID == "" {
			damage := attacker.Attack
			opponent.Life -= damage
			r.log.AppendChild(battleRoot.ID, fmt.Sprintf("%s attacked %s directly for %d (life %d)",
				attacker.Name, opponent.PlayerID, damage, opponent.Life))
			ev = BattleResult{
				RoomID:           r.id,
				Turn:             r.turn,
				AttackerPlayerID: active.PlayerID,
				DefenderPlayerID: opponent.PlayerID,
				Outcome:          battle.Outcome{AttackerID: attacker.ID, AttackerDefense: attacker.Defense},
				LifeDamage:       damage,
				DefenderLife:     opponent.Life,
			}
		} else {
			defender := findOnBoard(opponent.Board, pairing.DefenderID)
			if defender == nil {
				r.log.AppendChild(battleRoot.ID, fmt.Sprintf("%s no longer on the board, attack skipped", pairing.DefenderID))
				continue
			}

			outcome := battle.Resolve(attacker, defender)
			r.applyOutcomeLocked(active, attacker, outcome.AttackerDefense, outcome.AttackerDestroyed)
			r.applyOutcomeLocked(opponent, defender, outcome.DefenderDefense, outcome.DefenderDestroyed)

			r.log.AppendChild(battleRoot.ID, fmt.Sprintf("%s (%d/%d) fought %s (%d/%d)",
				attacker.Name, attacker.Attack, outcome.AttackerDefense,
				defender.Name, defender.Attack, outcome.DefenderDefense))

			ev = BattleResult{
				RoomID:           r.id,
				Turn:             r.turn,
				AttackerPlayerID: active.PlayerID,
				DefenderPlayerID: opponent.PlayerID,
				Outcome:          outcome,
				DefenderLife:     opponent.Life,
			}
		}

		emits = append(emits, r.battleEventLocked(ev))

		// A depleted life total ends the match immediately, regardless of
		// remaining declared pairings.
		if opponent.Life <= 0 {
			r.log.AppendChild(battleRoot.ID, fmt.Sprintf("%s's life reached %d", opponent.PlayerID, opponent.Life))
			r.finishLocked(active.PlayerID, opponent.PlayerID, ReasonLifeDepleted)
			return emits
		}
	}

	// End phase is transient: log it and hand the turn over.
	r.phase = PhaseEnd
	r.log.AppendRoot(fmt.Sprintf("turn %d: end phase", r.turn))

	r.turn++
	r.activeIdx = 1 - r.activeIdx
	r.phase = PhaseDraw
	r.log.AppendRoot(fmt.Sprintf("turn %d: %s to draw", r.turn, r.active().PlayerID))
	r.restartTimerLocked()

	return emits
}

// applyOutcomeLocked writes a resolver outcome back onto an instance and
// moves it board -> graveyard if it was destroyed.
func (r *Room) applyOutcomeLocked(owner *Participant, inst *card.Instance, defense int, destroyed bool) {
	inst.Defense = defense
	if !destroyed {
		return
	}
	for i, boardCard := range owner.Board {
		if boardCard.ID == inst.ID {
			owner.Board = append(owner.Board[:i], owner.Board[i+1:]...)
			break
		}
	}
	owner.Deck.Bury(inst)
}

// finishLocked performs the terminal transition: cancels the clock,
// finalizes the log and schedules the finish callback. Idempotent under
// the lock; only the first caller records a result.
func (r *Room) finishLocked(winnerID, loserID string, reason FinishReason) {
	if r.state == StateFinished {
		return
	}

	r.state = StateFinished
	r.timer.Cancel()

	r.log.Turn = r.turn
	r.log.AppendRoot(fmt.Sprintf("match finished: %s defeated %s (%s)", winnerID, loserID, reason))

	result := MatchResult{
		RoomID:   r.id,
		WinnerID: winnerID,
		LoserID:  loserID,
		Reason:   reason,
		Turns:    r.turn,
	}
	r.result = &result

	r.logger.Info("match finished",
		zap.String("room_id", r.id),
		zap.String("winner", winnerID),
		zap.String("loser", loserID),
		zap.String("reason", reason.String()),
		zap.Int("turns", r.turn),
	)

	if r.onFinish != nil {
		// The callback persists the log and notifies transports; it must
		// not run under the room lock.
		go r.onFinish(result, r.log)
	}
}

// restartTimerLocked arms the phase clock for the phase just entered.
// Each arming bumps the sequence counter so a callback from a previous
// phase that lost the cancellation race is recognized as stale.
func (r *Room) restartTimerLocked() {
	if r.cfg.PhaseTimeout <= 0 {
		return
	}

	r.timer.Cancel()
	if r.timer.State() != TimerIdle {
		if err := r.timer.Reset(); err != nil {
			r.logger.Error("failed to reset phase timer", zap.String("room_id", r.id), zap.Error(err))
			return
		}
	}

	r.seq++
	seq := r.seq
	if err := r.timer.Start(r.cfg.PhaseTimeout, func() {
		r.handleTimeout(seq)
	}); err != nil {
		r.logger.Error("failed to start phase timer", zap.String("room_id", r.id), zap.Error(err))
	}
}

// handleTimeout runs on the timer goroutine and funnels through the room
// lock. It forces the transition the active player would have triggered
// by acting: a draw during the Draw phase, an empty battle declaration
// during Main.
func (r *Room) handleTimeout(seq uint64) {
	r.mu.Lock()

	if r.state != StateInProgress || seq != r.seq {
		r.mu.Unlock()
		return
	}

	active := r.active()
	r.logger.Info("phase timer elapsed, auto-passing",
		zap.String("room_id", r.id),
		zap.String("player_id", active.PlayerID),
		zap.String("phase", r.phase.String()),
		zap.Int("turn", r.turn),
	)
	r.log.AppendRoot(fmt.Sprintf("turn %d: %s timed out during %s", r.turn, active.PlayerID, r.phase))

	var emits []func()
	switch r.phase {
	case PhaseDraw:
		emit, err := r.performDrawLocked()
		if err != nil {
			r.logger.Error("auto-draw failed", zap.String("room_id", r.id), zap.Error(err))
		}
		if emit != nil {
			emits = append(emits, emit)
		}
	case PhaseMain:
		emits = r.resolveBattleLocked(nil)
	}
	r.mu.Unlock()

	for _, emit := range emits {
		emit()
	}
}

// checkCommandLocked rejects commands that are structurally invalid for
// the current state: unknown player, match not started or finished,
// acting out of turn, or wrong phase. The state machine is unchanged on
// rejection.
func (r *Room) checkCommandLocked(playerID string, want Phase) error {
	switch r.state {
	case StateWaitingForPlayers:
		return ErrMatchNotStarted
	case StateFinished:
		return ErrMatchFinished
	}

	if _, err := r.participantLocked(playerID); err != nil {
		return err
	}
	if r.active().PlayerID != playerID {
		return fmt.Errorf("%w: it is %s's turn", ErrNotYourTurn, r.active().PlayerID)
	}
	if r.phase != want {
		return fmt.Errorf("%w: in %s, action requires %s", ErrWrongPhase, r.phase, want)
	}
	return nil
}

// drawEventsLocked builds the deferred draw notifications: full detail
// for the drawing player, an opaque count for the opponent.
func (r *Room) drawEventsLocked(drawer *Participant, drawn []*card.Instance) func() {
	details := make([]CardDetail, 0, len(drawn))
	for _, inst := range drawn {
		details = append(details, CardDetail{
			InstanceID:   inst.ID,
			DefinitionID: inst.DefinitionID,
			Name:         inst.Name,
			Attack:       inst.Attack,
			Defense:      inst.Defense,
			Cost:         inst.Cost,
		})
	}

	ownerEvent := DrawResult{
		RoomID:       r.id,
		Turn:         r.turn,
		PlayerID:     drawer.PlayerID,
		Count:        len(drawn),
		Cards:        details,
		DrawPileSize: drawer.Deck.DrawPileSize(),
	}
	publicEvent := ownerEvent
	publicEvent.Cards = nil

	ownerListener := drawer.listener
	opponentListener := r.opponentOf(drawer).listener

	return func() {
		if ownerListener != nil {
			ownerListener.DrawResult(ownerEvent)
		}
		if opponentListener != nil {
			opponentListener.DrawResult(publicEvent)
		}
	}
}

// battleEventLocked builds the deferred broadcast of one resolved pairing.
func (r *Room) battleEventLocked(ev BattleResult) func() {
	listeners := []EventListener{r.participants[0].listener, r.participants[1].listener}
	return func() {
		for _, l := range listeners {
			if l != nil {
				l.BattleResult(ev)
			}
		}
	}
}

func (r *Room) active() *Participant {
	return r.participants[r.activeIdx]
}

func (r *Room) opponent() *Participant {
	return r.participants[1-r.activeIdx]
}

func (r *Room) opponentOf(p *Participant) *Participant {
	if r.participants[0] == p {
		return r.participants[1]
	}
	return r.participants[0]
}

func (r *Room) participantLocked(playerID string) (*Participant, error) {
	for _, p := range r.participants {
		if p != nil && p.PlayerID == playerID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
}

func findOnBoard(board []*card.Instance, instanceID string) *card.Instance {
	for _, inst := range board {
		if inst.ID == instanceID {
			return inst
		}
	}
	return nil
}
