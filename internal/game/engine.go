package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
	"github.com/A2152225/MTGEDH-sub013/internal/game/targeting"
)

// maxSBAIterations bounds the fixed-point loop; a stable game reaches
// it in one or two passes.
const maxSBAIterations = 50

// EventSink persists committed events. The engine works without one;
// tests and ephemeral games run purely in memory.
type EventSink interface {
	AppendEvent(ctx context.Context, gameID string, evt Event) error
	LoadEvents(ctx context.Context, gameID string) ([]Event, error)
}

// Options configures a new Engine.
type Options struct {
	Logger   *zap.Logger
	Sink     EventSink
	Detector AbilityDetector
	// StartingLife defaults to 40 (commander).
	StartingLife int
	// DefaultStepTimeoutMs applies to queued resolution steps that do
	// not declare their own timeout. Zero disables timeouts.
	DefaultStepTimeoutMs int
	// RollbackDepth limits how many turns back a rollback may reach.
	// Zero means unlimited.
	RollbackDepth int
}

// Engine hosts independent game state machines. Each game is
// processed one request at a time under its own mutex; games share
// nothing mutable.
type Engine struct {
	mu    sync.RWMutex
	games map[string]*gameEntry

	logger               *zap.Logger
	sink                 EventSink
	detector             AbilityDetector
	startingLife         int
	defaultStepTimeoutMs int
	rollbackDepth        int
}

// combatState is live-only combat bookkeeping. Its consequences
// (taps, damage, life loss) are committed as events; the bookkeeping
// itself is discarded at end of combat.
type combatState struct {
	Attackers []string
	Defender  string
	// Blockers maps attacker id to blocker id.
	Blockers map[string]string
}

type gameEntry struct {
	mu       sync.Mutex
	state    *GameState
	bus      *rules.EventBus
	triggers *rules.TriggerManager
	// pendingTriggers collects fired triggers until they go on the
	// stack, in APNAP order, before anyone next receives priority.
	pendingTriggers []rules.PendingTrigger
	// triggerEffects keys the effect of a fired trigger by the stack
	// item id its Build produced.
	triggerEffects map[string]EffectSpec
	combat         *combatState
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	life := opts.StartingLife
	if life <= 0 {
		life = 40
	}
	return &Engine{
		games:                make(map[string]*gameEntry),
		logger:               opts.Logger,
		sink:                 opts.Sink,
		detector:             opts.Detector,
		startingLife:         life,
		defaultStepTimeoutMs: opts.DefaultStepTimeoutMs,
		rollbackDepth:        opts.RollbackDepth,
	}
}

func (e *Engine) newEntry(state *GameState) *gameEntry {
	entry := &gameEntry{
		state:          state,
		bus:            rules.NewEventBus(),
		triggers:       rules.NewTriggerManager(),
		triggerEffects: make(map[string]EffectSpec),
	}
	entry.bus.Subscribe(func(evt rules.Event) {
		entry.pendingTriggers = append(entry.pendingTriggers, entry.triggers.Handle(evt)...)
	})
	return entry
}

func (e *Engine) entry(gameID string) (*gameEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.games[gameID]
	if !ok {
		return nil, newEngineError(ErrCodeNotFound, "game not found: %s", gameID)
	}
	return entry, nil
}

func (e *Engine) withGame(gameID string, fn func(*gameEntry) error) error {
	entry, err := e.entry(gameID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry)
}

// GameIDs lists the games the engine currently hosts.
func (e *Engine) GameIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.games))
	for id := range e.games {
		ids = append(ids, id)
	}
	return ids
}

// RemoveGame drops a game from the engine. Its persisted event log,
// if any, survives in the sink.
func (e *Engine) RemoveGame(gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.games, gameID)
}

// commit builds, applies, persists and announces one event. Failure
// to apply leaves the state untouched.
func (e *Engine) commit(entry *gameEntry, eventType EventType, payload any) error {
	evt, err := entry.state.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := entry.state.ApplyEvent(evt); err != nil {
		return err
	}
	if e.sink != nil {
		if err := e.sink.AppendEvent(context.Background(), entry.state.ID, evt); err != nil && e.logger != nil {
			e.logger.Warn("failed to persist event",
				zap.String("game_id", entry.state.ID),
				zap.Int64("seq", evt.Seq),
				zap.String("type", string(evt.Type)),
				zap.Error(err))
		}
	}
	for _, occ := range occurrencesFor(entry.state, evt) {
		entry.bus.Publish(occ)
	}
	return nil
}

// CreateGame

// PlayerSetup describes one player joining a new game.
type PlayerSetup struct {
	ID        string
	Name      string
	Deck      []Card
	Commander *Card
}

// CreateGameOptions parameterize game creation.
type CreateGameOptions struct {
	GameID       string
	Players      []PlayerSetup
	Seed         int64
	StartingLife int
	// SkipOpeningDraw leaves libraries untouched after the shuffle.
	SkipOpeningDraw bool
	// OfferMulligans queues a mulligan decision per player after the
	// opening draw.
	OfferMulligans bool
}

// CreateGame sets up a game: roster, seed, libraries, shuffles and
// opening hands, all committed as events.
func (e *Engine) CreateGame(opts CreateGameOptions) (string, error) {
	gameID := opts.GameID
	if gameID == "" {
		gameID = uuid.NewString()
	}
	if len(opts.Players) == 0 {
		return "", newEngineError(ErrCodeProtocolViolation, "a game needs at least one player")
	}

	state := NewGameState(gameID)
	entry := e.newEntry(state)

	e.mu.Lock()
	if _, exists := e.games[gameID]; exists {
		e.mu.Unlock()
		return "", newEngineError(ErrCodeConflict, "game already exists: %s", gameID)
	}
	e.games[gameID] = entry
	e.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	life := opts.StartingLife
	if life <= 0 {
		life = e.startingLife
	}
	if err := e.commit(entry, EventGameCreated, gameCreatedPayload{GameID: gameID, StartingLife: life}); err != nil {
		return "", err
	}
	for _, p := range opts.Players {
		if err := e.commit(entry, EventPlayerJoined, playerJoinedPayload{PlayerID: p.ID, Name: p.Name, Life: life}); err != nil {
			return "", err
		}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if err := e.commit(entry, EventSeedSet, seedSetPayload{Seed: seed}); err != nil {
		return "", err
	}
	for _, p := range opts.Players {
		deck := make([]Card, len(p.Deck))
		for i, card := range p.Deck {
			card.Owner = p.ID
			if card.ID == "" {
				card.ID = uuid.NewString()
			}
			deck[i] = card
		}
		var command []Card
		if p.Commander != nil {
			commander := *p.Commander
			commander.Owner = p.ID
			commander.Commander = true
			if commander.ID == "" {
				commander.ID = uuid.NewString()
			}
			command = append(command, commander)
		}
		payload := libraryLoadedPayload{PlayerID: p.ID, Cards: deck, CommandCards: command}
		if err := e.commit(entry, EventLibraryLoaded, payload); err != nil {
			return "", err
		}
		if err := e.commit(entry, EventLibraryShuffled, libraryShuffledPayload{PlayerID: p.ID}); err != nil {
			return "", err
		}
	}
	if !opts.SkipOpeningDraw {
		for _, p := range opts.Players {
			if err := e.drawCards(entry, p.ID, 7); err != nil {
				return "", err
			}
		}
	}
	if opts.OfferMulligans {
		for _, pid := range state.APNAPPlayers() {
			if err := e.queueStep(entry, ResolutionStep{
				Type:      StepMulligan,
				Player:    pid,
				Mandatory: true,
				Payload: StepPayload{
					MinSelections: 1,
					MaxSelections: 1,
					Options:       []string{"keep", "mulligan"},
					Prompt:        "keep this hand or mulligan",
				},
			}); err != nil {
				return "", err
			}
		}
	}
	// Turn 1 starts in untap, which grants no priority; move to upkeep.
	if err := e.advanceStep(entry); err != nil {
		return "", err
	}
	if err := e.afterMutation(entry); err != nil {
		return "", err
	}
	if e.logger != nil {
		e.logger.Info("game created",
			zap.String("game_id", gameID),
			zap.Int("players", len(opts.Players)),
			zap.Int64("seed", seed))
	}
	return gameID, nil
}

// LoadGame rebuilds a game from its persisted event log and hosts it.
// Triggered abilities of battlefield permanents are re-registered
// from the detector.
func (e *Engine) LoadGame(ctx context.Context, gameID string) error {
	if e.sink == nil {
		return newEngineError(ErrCodeInternal, "no event sink configured")
	}
	events, err := e.sink.LoadEvents(ctx, gameID)
	if err != nil {
		return wrapEngineError(ErrCodeInternal, err, "load events for game %s", gameID)
	}
	state := Replay(gameID, events, e.logger)
	entry := e.newEntry(state)
	for _, perm := range state.Battlefield() {
		e.registerPermanentAbilities(entry, perm)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.games[gameID]; exists {
		return newEngineError(ErrCodeConflict, "game already loaded: %s", gameID)
	}
	e.games[gameID] = entry
	return nil
}

// guard rejects commands against missing or finished games.
func (e *Engine) guard(entry *gameEntry) error {
	if entry.state.Finished {
		return newEngineError(ErrCodeGameOver, "game %s is finished", entry.state.ID)
	}
	return nil
}

// requirePriority checks the player may act right now: the game is
// live, no decision is pending, and they hold priority.
func (e *Engine) requirePriority(entry *gameEntry, playerID string) error {
	if err := e.guard(entry); err != nil {
		return err
	}
	if active := entry.state.Resolution.Active(); active != nil {
		return newEngineError(ErrCodeProtocolViolation,
			"a decision is pending (%s for %s)", active.Type, active.Player)
	}
	if entry.state.Turn.PriorityPlayer() != playerID {
		return newEngineError(ErrCodeProtocolViolation, "player %s does not have priority", playerID)
	}
	return nil
}

// PassPriority records a pass. When every player has passed in
// succession the top of the stack resolves, or with an empty stack
// the step advances.
func (e *Engine) PassPriority(gameID, playerID string) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.requirePriority(entry, playerID); err != nil {
			return err
		}
		s := entry.state
		next := nextAlivePlayer(s, playerID)
		if err := e.commit(entry, EventPriorityPassed, priorityPassedPayload{PlayerID: playerID, NextPlayer: next}); err != nil {
			return err
		}
		if s.Priority.AllPassed(len(s.AlivePlayers())) {
			if top, ok := s.Stack.Peek(); ok {
				// Hold resolution while the top item waits on a
				// target or mode choice.
				if !itemAwaitingDecision(s, top.ID) {
					if err := e.resolveTop(entry); err != nil {
						return err
					}
				}
			} else {
				if err := e.advanceStep(entry); err != nil {
					return err
				}
			}
		}
		return e.afterMutation(entry)
	})
}

// NextStep advances the turn when the requester is the last player
// yet to pass on an empty stack. Any other situation is a protocol
// violation: steps never advance except by priority exhaustion.
func (e *Engine) NextStep(gameID, playerID string) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.requirePriority(entry, playerID); err != nil {
			return err
		}
		s := entry.state
		if !s.Stack.IsEmpty() {
			return newEngineError(ErrCodeProtocolViolation, "cannot advance the step with items on the stack")
		}
		if !s.Priority.AllPassed(len(s.AlivePlayers()) - 1) {
			return newEngineError(ErrCodeProtocolViolation,
				"cannot advance the step until every other player has passed")
		}
		next := nextAlivePlayer(s, playerID)
		if err := e.commit(entry, EventPriorityPassed, priorityPassedPayload{PlayerID: playerID, NextPlayer: next}); err != nil {
			return err
		}
		if err := e.advanceStep(entry); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
}

// TargetRef names one chosen target at cast time.
type TargetRef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// CastSpellRequest casts a card from hand onto the stack.
type CastSpellRequest struct {
	CardID  string      `json:"card_id"`
	Targets []TargetRef `json:"targets,omitempty"`
	Effect  EffectSpec  `json:"effect"`
}

// checkTargets validates chosen targets against the current state and
// converts them into stack item targets.
func checkTargets(s *GameState, refs []TargetRef) ([]rules.Target, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	validator := targeting.NewValidator(rules.NewLegalityChecker(s))
	targets := make([]rules.Target, 0, len(refs))
	for _, ref := range refs {
		sel := &targeting.Selection{
			Requirement: targeting.Exactly(ref.Kind, 1),
			ChosenIDs:   []string{ref.ID},
		}
		if err := validator.Validate(sel); err != nil {
			return nil, wrapEngineError(ErrCodeInvalidSelection, err, "illegal target %s", ref.ID)
		}
		targets = append(targets, sel.ToTargets()...)
	}
	return targets, nil
}

// CastSpell puts a spell on the stack. Targets must be legal when
// chosen; their legality is re-checked at resolution.
func (e *Engine) CastSpell(gameID, playerID string, req CastSpellRequest) (string, error) {
	var itemID string
	err := e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.requirePriority(entry, playerID); err != nil {
			return err
		}
		s := entry.state
		ps := s.Player(playerID)
		card, ok := ps.findCard(ZoneHand, req.CardID)
		if !ok {
			return newEngineError(ErrCodeNotFound, "card %s is not in hand", req.CardID)
		}
		targets, err := checkTargets(s, req.Targets)
		if err != nil {
			return err
		}
		itemID = uuid.NewString()
		payload := stackPushedPayload{
			Item: stackItemRecord{
				ID:          itemID,
				Kind:        rules.StackItemKindSpell,
				Controller:  playerID,
				Owner:       playerID,
				SourceID:    card.ID,
				Description: card.Name,
				Targets:     targets,
				CardID:      card.ID,
			},
			Effect:   req.Effect,
			FromZone: ZoneHand,
		}
		if err := e.commit(entry, EventStackPushed, payload); err != nil {
			return err
		}
		// Rule 601.2b: modes are chosen as part of casting.
		if len(req.Effect.Modes) > 0 {
			step := ResolutionStep{
				Type:         StepChooseMode,
				Player:       playerID,
				Mandatory:    true,
				SourceItemID: itemID,
				Payload: StepPayload{
					MinSelections: 1,
					MaxSelections: 1,
					Options:       modeOptions(req.Effect),
					Prompt:        "choose a mode for " + card.Name,
				},
			}
			if err := e.queueStep(entry, step); err != nil {
				return err
			}
		}
		return e.afterMutation(entry)
	})
	return itemID, err
}

// modeOptions labels a modal effect's choices. Unnamed modes fall
// back to their effect kind.
func modeOptions(spec EffectSpec) []string {
	options := make([]string, len(spec.Modes))
	for i := range spec.Modes {
		if i < len(spec.ModeNames) && spec.ModeNames[i] != "" {
			options[i] = spec.ModeNames[i]
		} else {
			options[i] = string(spec.Modes[i].Kind)
		}
	}
	return options
}

// ActivateAbilityRequest puts an activated ability on the stack.
type ActivateAbilityRequest struct {
	SourceID    string      `json:"source_id"`
	Description string      `json:"description"`
	Targets     []TargetRef `json:"targets,omitempty"`
	Effect      EffectSpec  `json:"effect"`
}

// ActivateAbility pushes an activated ability of a battlefield
// permanent.
func (e *Engine) ActivateAbility(gameID, playerID string, req ActivateAbilityRequest) (string, error) {
	var itemID string
	err := e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.requirePriority(entry, playerID); err != nil {
			return err
		}
		s := entry.state
		if !s.PermanentOnBattlefield(req.SourceID) {
			return newEngineError(ErrCodeNotFound, "permanent %s is not on the battlefield", req.SourceID)
		}
		targets, err := checkTargets(s, req.Targets)
		if err != nil {
			return err
		}
		itemID = uuid.NewString()
		payload := stackPushedPayload{
			Item: stackItemRecord{
				ID:          itemID,
				Kind:        rules.StackItemKindActivated,
				Controller:  playerID,
				Owner:       playerID,
				SourceID:    req.SourceID,
				Description: req.Description,
				Targets:     targets,
			},
			Effect: req.Effect,
		}
		if err := e.commit(entry, EventStackPushed, payload); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
	return itemID, err
}

// PlayLand takes the play-a-land special action: no stack, no
// priority round, one per turn during the player's own main phase.
func (e *Engine) PlayLand(gameID, playerID, cardID string) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.requirePriority(entry, playerID); err != nil {
			return err
		}
		s := entry.state
		ps := s.Player(playerID)
		card, ok := ps.findCard(ZoneHand, cardID)
		if !ok {
			return newEngineError(ErrCodeNotFound, "card %s is not in hand", cardID)
		}
		if !card.Land {
			return newEngineError(ErrCodeProtocolViolation, "%s is not a land", card.Name)
		}
		ctx := rules.SpecialActionContext{
			Phase:          s.Turn.CurrentPhase(),
			Step:           s.Turn.CurrentStep(),
			StackEmpty:     s.Stack.IsEmpty(),
			ActivePlayer:   s.Turn.ActivePlayer(),
			PriorityPlayer: s.Turn.PriorityPlayer(),
			Player:         playerID,
			TakenThisTurn:  ps.LandsPlayedThisTurn,
		}
		if err := rules.CheckSpecialAction(rules.SpecialActionPlayLand, ctx); err != nil {
			return wrapEngineError(ErrCodeProtocolViolation, err, "cannot play land")
		}
		if err := e.commit(entry, EventLandPlayed, landPlayedPayload{PlayerID: playerID, CardID: cardID}); err != nil {
			return err
		}
		if err := e.enterPermanent(entry, card, playerID, ZoneHand); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
}

// ResolveTopOfStack resolves the top item on demand. Normal flow
// reaches resolution through priority exhaustion; this entry point
// serves resyncs and tests and holds to the same precondition.
func (e *Engine) ResolveTopOfStack(gameID string) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.guard(entry); err != nil {
			return err
		}
		if entry.state.Stack.IsEmpty() {
			return newEngineError(ErrCodeProtocolViolation, "the stack is empty")
		}
		if !entry.state.Priority.AllPassed(len(entry.state.AlivePlayers())) {
			return newEngineError(ErrCodeProtocolViolation, "the stack resolves only after every player passes")
		}
		if err := e.resolveTop(entry); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
}

// Concede removes a player from the game.
func (e *Engine) Concede(gameID, playerID string) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.guard(entry); err != nil {
			return err
		}
		if entry.state.Player(playerID) == nil {
			return newEngineError(ErrCodeNotFound, "unknown player: %s", playerID)
		}
		if err := e.playerLoses(entry, playerID, "conceded"); err != nil {
			return err
		}
		return e.afterMutation(entry)
	})
}

// ResetGame restores the game to a fresh state, optionally keeping
// the roster. The event log continues through the reset.
func (e *Engine) ResetGame(gameID string, preservePlayers bool) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		if err := e.commit(entry, EventGameReset, gameResetPayload{PreservePlayers: preservePlayers}); err != nil {
			return err
		}
		entry.pendingTriggers = nil
		entry.triggerEffects = make(map[string]EffectSpec)
		entry.combat = nil
		entry.triggers = rules.NewTriggerManager()
		return nil
	})
}

// internals

func nextAlivePlayer(s *GameState, after string) string {
	alive := s.AlivePlayers()
	if len(alive) == 0 {
		return ""
	}
	for i, id := range alive {
		if id == after {
			return alive[(i+1)%len(alive)]
		}
	}
	return alive[0]
}

// drawCards draws n cards. A draw past the end of the library marks
// the player; rule 704.5b turns that into a loss on the next
// state-based action pass.
func (e *Engine) drawCards(entry *gameEntry, playerID string, n int) error {
	ps := entry.state.Player(playerID)
	if ps == nil {
		return newEngineError(ErrCodeNotFound, "unknown player: %s", playerID)
	}
	available := len(ps.Library)
	count := n
	if count > available {
		count = available
	}
	if count > 0 || n > available {
		payload := cardDrawnPayload{PlayerID: playerID, Count: count, FromEmpty: n > available}
		if err := e.commit(entry, EventCardDrawn, payload); err != nil {
			return err
		}
	}
	return nil
}

// resolveTop pops and resolves the top of the stack: re-check target
// legality, fizzle if every target is gone, otherwise apply the
// effect. The caller runs the SBA fixed point afterwards.
func (e *Engine) resolveTop(entry *gameEntry) error {
	s := entry.state
	item, ok := s.Stack.Peek()
	if !ok {
		return newEngineError(ErrCodeProtocolViolation, "the stack is empty")
	}
	if itemAwaitingDecision(s, item.ID) {
		return newEngineError(ErrCodeProtocolViolation,
			"the top of the stack is waiting on a decision")
	}
	checker := rules.NewLegalityChecker(s)
	for _, newlyIllegal := range checker.ReviewStackItem(item) {
		if err := e.commit(entry, EventTargetIllegal, targetIllegalPayload{ItemID: item.ID, TargetID: newlyIllegal}); err != nil {
			return err
		}
	}
	item, _ = s.Stack.Peek()
	if len(item.Targets) > 0 && !item.HasLegalTarget() {
		// Rule 608.2b: the item does not resolve.
		if err := e.commit(entry, EventItemFizzled, stackRemovedPayload{ItemID: item.ID, CardTo: ZoneGraveyard}); err != nil {
			return err
		}
		if e.logger != nil {
			e.logger.Debug("stack item fizzled",
				zap.String("game_id", s.ID),
				zap.String("item_id", item.ID))
		}
		return nil
	}

	effect, hasEffect := s.stackEffects[item.ID]
	if !hasEffect {
		effect = entry.triggerEffects[item.ID]
	}
	delete(entry.triggerEffects, item.ID)
	spellCard, isSpellCard := s.stackCards[item.ID]

	cardTo := ZoneGraveyard
	if isSpellCard && effect.Kind == EffectEnterSelf {
		// Permanent spells move to the battlefield, not the graveyard.
		cardTo = ""
	}
	if err := e.commit(entry, EventStackResolved, stackRemovedPayload{ItemID: item.ID, CardTo: cardTo}); err != nil {
		return err
	}
	if effect.Kind == EffectEnterSelf && isSpellCard {
		if err := e.enterPermanent(entry, spellCard, item.Controller, ""); err != nil {
			return err
		}
		if effect.Then != nil {
			return e.applyEffect(entry, item, *effect.Then)
		}
		return nil
	}
	return e.applyEffect(entry, item, effect)
}

// itemAwaitingDecision reports whether a stack item still has a
// pending resolution step, e.g. a target or mode choice.
func itemAwaitingDecision(s *GameState, itemID string) bool {
	for _, step := range s.Resolution.List() {
		if step.SourceItemID == itemID {
			return true
		}
	}
	return false
}

// enterPermanent commits a battlefield entry for a card and registers
// its triggered abilities.
func (e *Engine) enterPermanent(entry *gameEntry, card Card, controller string, fromZone Zone) error {
	perm := Permanent{
		ID:         uuid.NewString(),
		Card:       card,
		Controller: controller,
	}
	// Triggers must be live before the entry event lands so the
	// permanent sees its own arrival (rule 603.6a).
	e.registerPermanentAbilities(entry, &perm)
	if err := e.commit(entry, EventPermanentEntered, permanentEnteredPayload{Permanent: perm, FromZone: fromZone}); err != nil {
		entry.triggers.UnregisterSource(perm.ID)
		return err
	}
	return nil
}

// registerPermanentAbilities asks the detector for the permanent's
// triggered abilities and wires them to the occurrence bus.
func (e *Engine) registerPermanentAbilities(entry *gameEntry, perm *Permanent) {
	if e.detector == nil || perm.Card.Text == "" {
		return
	}
	descriptors := e.detector.DetectAbilities(perm.Card.Text, AbilityContext{
		CardName:   perm.Card.Name,
		SourceID:   perm.ID,
		Controller: perm.Controller,
	})
	for _, desc := range descriptors {
		desc := desc
		permID := perm.ID
		controller := perm.Controller
		entry.triggers.Register(rules.AbilityTrigger{
			SourceID:   permID,
			Controller: controller,
			EventType:  desc.TriggerTag,
			Mandatory:  desc.Mandatory,
			Condition: func(occ rules.Event) bool {
				if desc.SelfOnly && occ.TargetID != permID {
					return false
				}
				return evalCondition(entry.state, desc.InterveningIf, controller, permID)
			},
			Build: func(occ rules.Event) rules.StackItem {
				itemID := uuid.NewString()
				entry.triggerEffects[itemID] = desc.Effect
				return rules.StackItem{
					ID:          itemID,
					Kind:        rules.StackItemKindTriggered,
					Controller:  controller,
					Owner:       controller,
					SourceID:    permID,
					Description: desc.Description,
				}
			},
		})
	}
}

// flushPendingTriggers puts fired triggers on the stack in APNAP
// order. When one player controls several, a trigger-ordering step is
// queued and flushing pauses until they answer.
func (e *Engine) flushPendingTriggers(entry *gameEntry) error {
	s := entry.state
	for len(entry.pendingTriggers) > 0 {
		controller := ""
		for _, pid := range s.APNAPPlayers() {
			for _, pt := range entry.pendingTriggers {
				if pt.Controller == pid {
					controller = pid
					break
				}
			}
			if controller != "" {
				break
			}
		}
		if controller == "" {
			// Controllers left the game; drop their triggers.
			entry.pendingTriggers = nil
			return nil
		}
		var theirs []rules.PendingTrigger
		for _, pt := range entry.pendingTriggers {
			if pt.Controller == controller {
				theirs = append(theirs, pt)
			}
		}
		if len(theirs) == 1 {
			if err := e.pushPendingTrigger(entry, theirs[0]); err != nil {
				return err
			}
			continue
		}
		ids := make([]string, len(theirs))
		for i, pt := range theirs {
			ids[i] = pt.ID
		}
		return e.queueStep(entry, ResolutionStep{
			Type:      StepOrderTriggers,
			Player:    controller,
			Mandatory: true,
			Payload: StepPayload{
				MinSelections: len(ids),
				MaxSelections: len(ids),
				Options:       ids,
				Prompt:        "order your triggered abilities (first chosen resolves last)",
			},
		})
	}
	return nil
}

func (e *Engine) pushPendingTrigger(entry *gameEntry, pt rules.PendingTrigger) error {
	item := pt.Item
	effect := entry.triggerEffects[item.ID]
	payload := stackPushedPayload{
		Item: stackItemRecord{
			ID:          item.ID,
			Kind:        item.Kind,
			Controller:  item.Controller,
			Owner:       item.Owner,
			SourceID:    item.SourceID,
			Description: item.Description,
			Targets:     item.Targets,
		},
		Effect: effect,
	}
	if err := e.commit(entry, EventStackPushed, payload); err != nil {
		return err
	}
	kept := entry.pendingTriggers[:0]
	for _, other := range entry.pendingTriggers {
		if other.ID != pt.ID {
			kept = append(kept, other)
		}
	}
	entry.pendingTriggers = kept

	// Rule 603.3d: a targeted trigger picks its targets as it goes on
	// the stack. The item waits on the stack until the choice lands.
	if effectNeedsTargets(effect) && len(item.Targets) == 0 {
		return e.queueStep(entry, ResolutionStep{
			Type:         StepChooseTargets,
			Player:       item.Controller,
			Mandatory:    true,
			SourceItemID: item.ID,
			Payload: StepPayload{
				MinSelections: 1,
				MaxSelections: 1,
				Prompt:        "choose a target for " + item.Description,
			},
		})
	}
	return nil
}

// advanceStep walks the turn sequence, performing each step's
// turn-based actions, until it lands on a step that grants priority.
func (e *Engine) advanceStep(entry *gameEntry) error {
	s := entry.state
	// Two full turns of headroom; a settle must happen well before.
	for i := 0; i < 24; i++ {
		phase, step, newTurn := rules.Next(s.Turn.CurrentPhase(), s.Turn.CurrentStep())
		turn := s.Turn.TurnNumber()
		active := s.Turn.ActivePlayer()
		if newTurn {
			turn++
			active = nextAlivePlayer(s, active)
		}
		payload := stepAdvancedPayload{
			Turn:         turn,
			Phase:        phase.String(),
			Step:         step.String(),
			ActivePlayer: active,
			NewTurn:      newTurn,
		}
		if err := e.commit(entry, EventStepAdvanced, payload); err != nil {
			return err
		}
		if err := e.turnBasedActions(entry, step); err != nil {
			return err
		}
		if s.Finished {
			return nil
		}
		if rules.GrantsPriority(step) {
			return nil
		}
		if s.Resolution.Len() > 0 {
			// A cleanup discard is pending; resume after the answer.
			return nil
		}
	}
	return newEngineError(ErrCodeInternal, "turn sequence did not settle")
}

// turnBasedActions performs the automatic actions of a step just
// entered (rule 703).
func (e *Engine) turnBasedActions(entry *gameEntry, step rules.Step) error {
	s := entry.state
	active := s.Turn.ActivePlayer()
	switch step {
	case rules.StepUntap:
		for _, perm := range s.Battlefield() {
			if perm.Controller == active && perm.Tapped {
				if err := e.commit(entry, EventPermanentUntapped, permanentTappedPayload{PermanentID: perm.ID}); err != nil {
					return err
				}
			}
		}
	case rules.StepDraw:
		if err := e.drawCards(entry, active, 1); err != nil {
			return err
		}
	case rules.StepDeclareAttackers:
		var eligible []string
		for _, perm := range s.Battlefield() {
			if perm.Controller == active && perm.IsCreature() && !perm.Tapped {
				eligible = append(eligible, perm.ID)
			}
		}
		if len(eligible) > 0 && len(s.AlivePlayers()) > 1 {
			return e.queueStep(entry, ResolutionStep{
				Type:   StepDeclareAttackers,
				Player: active,
				Payload: StepPayload{
					MinSelections: 0,
					MaxSelections: len(eligible),
					Options:       eligible,
					Prompt:        "declare attackers",
				},
			})
		}
	case rules.StepDeclareBlockers:
		if entry.combat == nil || len(entry.combat.Attackers) == 0 {
			return nil
		}
		defender := entry.combat.Defender
		var eligible []string
		for _, perm := range s.Battlefield() {
			if perm.Controller == defender && perm.IsCreature() && !perm.Tapped {
				eligible = append(eligible, perm.ID)
			}
		}
		if len(eligible) > 0 {
			return e.queueStep(entry, ResolutionStep{
				Type:   StepDeclareBlockers,
				Player: defender,
				Payload: StepPayload{
					MinSelections: 0,
					MaxSelections: len(entry.combat.Attackers),
					Options:       eligible,
					Prompt:        "declare blockers, paired with attackers in order",
				},
			})
		}
	case rules.StepCombatDamage:
		return e.applyCombatDamage(entry)
	case rules.StepEndCombat:
		entry.combat = nil
	case rules.StepCleanup:
		if err := e.commit(entry, EventDamageCleared, struct{}{}); err != nil {
			return err
		}
		ps := s.Player(active)
		if ps != nil && len(ps.Hand) > 7 {
			excess := len(ps.Hand) - 7
			return e.queueStep(entry, ResolutionStep{
				Type:      StepDiscard,
				Player:    active,
				Mandatory: true,
				Payload: StepPayload{
					MinSelections: excess,
					MaxSelections: excess,
					Zone:          ZoneHand,
					Prompt:        "discard down to maximum hand size",
				},
			})
		}
	}
	return nil
}

// applyCombatDamage commits the damage of the simplified combat
// model: paired blockers trade damage, unblocked attackers hit the
// defending player, commanders add commander damage.
func (e *Engine) applyCombatDamage(entry *gameEntry) error {
	if entry.combat == nil {
		return nil
	}
	s := entry.state
	combat := entry.combat
	for _, attackerID := range combat.Attackers {
		attacker := s.Permanent(attackerID)
		if attacker == nil {
			continue
		}
		power := attacker.CurrentPower()
		if power <= 0 {
			continue
		}
		if blockerID, blocked := combat.Blockers[attackerID]; blocked {
			if blocker := s.Permanent(blockerID); blocker != nil {
				if err := e.commit(entry, EventDamageMarked, damageMarkedPayload{PermanentID: blockerID, Amount: power}); err != nil {
					return err
				}
				if bp := blocker.CurrentPower(); bp > 0 {
					if err := e.commit(entry, EventDamageMarked, damageMarkedPayload{PermanentID: attackerID, Amount: bp}); err != nil {
						return err
					}
				}
				continue
			}
		}
		if !s.PlayerInGame(combat.Defender) {
			continue
		}
		if err := e.commit(entry, EventLifeChanged, lifeChangedPayload{PlayerID: combat.Defender, Delta: -power}); err != nil {
			return err
		}
		if attacker.Card.Commander {
			payload := commanderDamagePayload{
				PlayerID:    combat.Defender,
				CommanderID: attacker.Card.ID,
				Amount:      power,
			}
			if err := e.commit(entry, EventCommanderDamage, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

// runStateBasedActions applies the SBA catalog to a fixed point. Each
// pass collects every applicable action against the pre-batch state
// and applies them together.
func (e *Engine) runStateBasedActions(entry *gameEntry) error {
	s := entry.state
	for i := 0; i < maxSBAIterations; i++ {
		actions := CollectStateBasedActions(s)
		if len(actions) == 0 {
			return nil
		}
		if err := e.applySBABatch(entry, actions); err != nil {
			return err
		}
		entry.bus.Publish(rules.NewEvent(rules.EventStateBasedActions, "", "", ""))
	}
	if e.logger != nil {
		e.logger.Error("state-based actions did not reach a fixed point",
			zap.String("game_id", s.ID))
	}
	return newEngineError(ErrCodeInternal, "state-based actions did not reach a fixed point")
}

func (e *Engine) applySBABatch(entry *gameEntry, actions []SBAAction) error {
	doomed := make(map[string]string)
	var doomedOrder []string
	lost := make(map[string]string)
	var lostOrder []string

	for _, action := range actions {
		switch action.Kind {
		case SBAPlayerLifeLoss, SBAPlayerEmptyDraw, SBAPlayerPoisoned, SBAPlayerCommanderDmg:
			if _, seen := lost[action.PlayerID]; !seen {
				lost[action.PlayerID] = action.Reason
				lostOrder = append(lostOrder, action.PlayerID)
			}
		case SBACounterAnnihilation:
			perm := action.PermanentIDs[0]
			for _, name := range []string{"+1/+1", "-1/-1"} {
				payload := countersChangedPayload{PermanentID: perm, CounterName: name, Delta: -action.Amount}
				if err := e.commit(entry, EventCountersChanged, payload); err != nil {
					return err
				}
			}
		case SBAEquipmentDetached:
			payload := attachmentChangedPayload{PermanentID: action.PermanentIDs[0]}
			if err := e.commit(entry, EventAttachmentChanged, payload); err != nil {
				return err
			}
		default:
			for _, id := range action.Doomed {
				if _, seen := doomed[id]; !seen {
					doomed[id] = action.Reason
					doomedOrder = append(doomedOrder, id)
				}
			}
		}
	}

	for _, id := range doomedOrder {
		var card Card
		if perm := entry.state.Permanent(id); perm != nil {
			card = perm.Card
		}
		payload := permanentLeftPayload{PermanentID: id, To: ZoneGraveyard, Reason: doomed[id]}
		if err := e.commit(entry, EventPermanentLeft, payload); err != nil {
			return err
		}
		entry.triggers.UnregisterSource(id)
		if err := e.cancelStepsBySource(entry, id); err != nil {
			return err
		}
		if err := e.offerCommanderReplacement(entry, card, ZoneGraveyard); err != nil {
			return err
		}
	}
	for _, id := range lostOrder {
		if err := e.playerLoses(entry, id, lost[id]); err != nil {
			return err
		}
	}
	return nil
}

// playerLoses commits the loss, removes the player's objects and
// decisions, repairs the priority baton and ends the game when at
// most one player remains.
func (e *Engine) playerLoses(entry *gameEntry, playerID, reason string) error {
	s := entry.state
	ps := s.Player(playerID)
	if ps == nil || ps.Lost {
		return nil
	}
	if err := e.commit(entry, EventPlayerLost, playerLostPayload{PlayerID: playerID, Reason: reason}); err != nil {
		return err
	}
	if e.logger != nil {
		e.logger.Info("player lost",
			zap.String("game_id", s.ID),
			zap.String("player_id", playerID),
			zap.String("reason", reason))
	}
	// Rule 800.4a: objects the player owns leave the game.
	for _, perm := range s.Battlefield() {
		if perm.Card.Owner != playerID {
			continue
		}
		payload := permanentLeftPayload{PermanentID: perm.ID, Reason: "owner left the game"}
		if err := e.commit(entry, EventPermanentLeft, payload); err != nil {
			return err
		}
		entry.triggers.UnregisterSource(perm.ID)
		if err := e.cancelStepsBySource(entry, perm.ID); err != nil {
			return err
		}
	}
	for _, step := range s.Resolution.List() {
		if step.Player != playerID {
			continue
		}
		payload := stepRefPayload{StepID: step.ID, Reason: "player left the game"}
		if err := e.commit(entry, EventStepCancelled, payload); err != nil {
			return err
		}
	}

	alive := s.AlivePlayers()
	if len(alive) <= 1 && !s.Finished {
		winner := ""
		if len(alive) == 1 {
			winner = alive[0]
		}
		return e.commit(entry, EventGameFinished, gameFinishedPayload{WinnerID: winner})
	}
	if s.Turn.PriorityPlayer() == playerID {
		next := nextAlivePlayer(s, playerID)
		payload := priorityPassedPayload{PlayerID: playerID, NextPlayer: next}
		if err := e.commit(entry, EventPriorityPassed, payload); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cancelStepsBySource(entry *gameEntry, sourceID string) error {
	for _, step := range entry.state.Resolution.List() {
		if step.SourceItemID != sourceID {
			continue
		}
		payload := stepRefPayload{StepID: step.ID, Reason: "source left play"}
		if err := e.commit(entry, EventStepCancelled, payload); err != nil {
			return err
		}
	}
	return nil
}

// afterMutation is the shared tail of every command: SBA fixed point,
// pending triggers onto the stack, and resolution-step activation.
func (e *Engine) afterMutation(entry *gameEntry) error {
	if err := e.runStateBasedActions(entry); err != nil {
		return err
	}
	if !entry.state.Finished {
		if err := e.flushPendingTriggers(entry); err != nil {
			return err
		}
		if err := e.runStateBasedActions(entry); err != nil {
			return err
		}
	}
	return e.activateNextStep(entry)
}

// queueStep assigns identity and ordering to a step and commits it.
func (e *Engine) queueStep(entry *gameEntry, step ResolutionStep) error {
	s := entry.state
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	step.CreatedSeq = s.Seq + 1
	step.APNAPIndex = rules.APNAPIndex(s.AlivePlayers(), s.Turn.ActivePlayer(), step.Player)
	if step.TimeoutMs == 0 {
		step.TimeoutMs = e.defaultStepTimeoutMs
	}
	return e.commit(entry, EventStepQueued, stepQueuedPayload{Step: step})
}

// activateNextStep activates the head of the queue when no step is
// active.
func (e *Engine) activateNextStep(entry *gameEntry) error {
	s := entry.state
	if s.Resolution.Active() != nil || s.Resolution.Len() == 0 {
		return nil
	}
	head := s.Resolution.List()[0]
	return e.commit(entry, EventStepActivated, stepRefPayload{StepID: head.ID})
}

// occurrencesFor translates a committed log event into the rules
// occurrences triggered abilities listen for. Publication happens
// only on the live command path; replay folds events silently, so
// triggers never fire twice.
func occurrencesFor(s *GameState, evt Event) []rules.Event {
	switch evt.Type {
	case EventPermanentEntered:
		payload, err := decodePayload[permanentEnteredPayload](evt)
		if err != nil {
			return nil
		}
		perm := payload.Permanent
		occs := []rules.Event{
			rules.NewEvent(rules.EventEntersTheBattlefield, perm.ID, perm.ID, perm.Controller),
		}
		if perm.Card.Token {
			occs = append(occs, rules.NewEvent(rules.EventTokenCreated, perm.ID, perm.ID, perm.Controller))
		}
		return occs
	case EventPermanentLeft:
		payload, err := decodePayload[permanentLeftPayload](evt)
		if err != nil {
			return nil
		}
		switch payload.To {
		case ZoneGraveyard:
			return []rules.Event{rules.NewEvent(rules.EventPermanentDies, payload.PermanentID, payload.PermanentID, "")}
		case ZoneExile:
			return []rules.Event{rules.NewEvent(rules.EventPermanentExiled, payload.PermanentID, payload.PermanentID, "")}
		}
		return nil
	case EventPermanentTapped:
		payload, err := decodePayload[permanentTappedPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEvent(rules.EventTapped, payload.PermanentID, payload.PermanentID, "")}
	case EventPermanentUntapped:
		payload, err := decodePayload[permanentTappedPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEvent(rules.EventUntapped, payload.PermanentID, payload.PermanentID, "")}
	case EventCardDrawn:
		payload, err := decodePayload[cardDrawnPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEventWithAmount(rules.EventDrewCard, payload.PlayerID, "", payload.PlayerID, payload.Count)}
	case EventLifeChanged:
		payload, err := decodePayload[lifeChangedPayload](evt)
		if err != nil {
			return nil
		}
		if payload.Delta >= 0 {
			return []rules.Event{rules.NewEventWithAmount(rules.EventGainedLife, payload.PlayerID, "", payload.PlayerID, payload.Delta)}
		}
		return []rules.Event{rules.NewEventWithAmount(rules.EventLostLife, payload.PlayerID, "", payload.PlayerID, -payload.Delta)}
	case EventDamageMarked:
		payload, err := decodePayload[damageMarkedPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEventWithAmount(rules.EventDamagedPermanent, payload.PermanentID, "", "", payload.Amount)}
	case EventStackPushed:
		payload, err := decodePayload[stackPushedPayload](evt)
		if err != nil {
			return nil
		}
		if payload.Item.Kind == rules.StackItemKindSpell {
			return []rules.Event{rules.NewEvent(rules.EventSpellCast, payload.Item.ID, payload.Item.SourceID, payload.Item.Controller)}
		}
		return nil
	case EventStackResolved:
		payload, err := decodePayload[stackRemovedPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEvent(rules.EventStackItemResolved, payload.ItemID, payload.ItemID, "")}
	case EventStackCountered:
		payload, err := decodePayload[stackRemovedPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEvent(rules.EventStackItemCountered, payload.ItemID, payload.ItemID, "")}
	case EventLandPlayed:
		payload, err := decodePayload[landPlayedPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEvent(rules.EventLandPlayed, payload.CardID, payload.CardID, payload.PlayerID)}
	case EventLibraryShuffled:
		payload, err := decodePayload[libraryShuffledPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEvent(rules.EventLibraryShuffled, payload.PlayerID, "", payload.PlayerID)}
	case EventPlayerLost:
		payload, err := decodePayload[playerLostPayload](evt)
		if err != nil {
			return nil
		}
		return []rules.Event{rules.NewEvent(rules.EventPlayerLost, payload.PlayerID, "", payload.PlayerID)}
	case EventStepAdvanced:
		payload, err := decodePayload[stepAdvancedPayload](evt)
		if err != nil {
			return nil
		}
		occs := []rules.Event{rules.NewEvent(rules.EventStepChanged, "", "", payload.ActivePlayer)}
		if payload.NewTurn {
			occs = append(occs, rules.NewEvent(rules.EventTurnBegan, "", "", payload.ActivePlayer))
		}
		switch payload.Step {
		case rules.StepUntap.String():
			occs = append(occs, rules.NewEvent(rules.EventUntapStep, "", "", payload.ActivePlayer))
		case rules.StepUpkeep.String():
			occs = append(occs, rules.NewEvent(rules.EventUpkeepStep, "", "", payload.ActivePlayer))
		case rules.StepDraw.String():
			occs = append(occs, rules.NewEvent(rules.EventDrawStep, "", "", payload.ActivePlayer))
		case rules.StepEnd.String():
			occs = append(occs, rules.NewEvent(rules.EventEndStep, "", "", payload.ActivePlayer))
		case rules.StepCleanup.String():
			occs = append(occs, rules.NewEvent(rules.EventCleanupStep, "", "", payload.ActivePlayer))
		}
		return occs
	}
	return nil
}
