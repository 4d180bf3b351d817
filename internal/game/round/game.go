package round

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/palemoky/geoquiz/internal/apperrors"
	"github.com/palemoky/geoquiz/internal/game/round/catalogue"
	"github.com/palemoky/geoquiz/internal/geo"
)

const maxNameLength = 32

type player struct {
	info    PlayerInfo
	joinSeq uint64
	answers map[int]Answer // 仅保留当前回合
	results []Result       // 最近 N 个成绩，旧的在前
}

// closedTurn 已结束回合的快照，创建后不再修改
type closedTurn struct {
	number  int
	ranked  []PlayerInfo
	results map[string]Result
	answers map[string]Answer
}

// Game 内存中的回合状态：目标城市、玩家、答案、成绩与颜色图例。
// 所有方法并发安全。
type Game struct {
	mu sync.Mutex

	cfg    Config
	picker *catalogue.Picker

	players map[string]*player
	seq     uint64

	turn   int
	open   bool
	target Target
	last   *closedTurn

	colorSlots  []string // 已分配颜色的玩家 ID，按分配顺序
	legendDirty bool
}

// NewGame 创建回合状态
func NewGame(cfg Config, picker *catalogue.Picker) *Game {
	if cfg.LeaderboardAnswerCount <= 0 {
		cfg.LeaderboardAnswerCount = 1
	}
	return &Game{
		cfg:     cfg,
		picker:  picker,
		players: make(map[string]*player),
	}
}

func (g *Game) nextSeq() uint64 {
	g.seq++
	return g.seq
}

// --- 玩家 ---

// AddPlayer 玩家加入游戏，返回分配到的颜色
func (g *Game) AddPlayer(id, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", apperrors.ErrInvalidName
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.players[id]; ok {
		return "", apperrors.ErrAlreadyJoined
	}

	p := &player{
		info:    PlayerInfo{ID: id, Name: name, Color: NoColor},
		joinSeq: g.nextSeq(),
		answers: make(map[int]Answer),
	}
	if color, ok := g.freeColorLocked(); ok {
		p.info.Color = color
		g.colorSlots = append(g.colorSlots, id)
		g.legendDirty = true
	}
	g.players[id] = p
	return p.info.Color, nil
}

// RemovePlayer 玩家离开游戏，释放其颜色
func (g *Game) RemovePlayer(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.players[id]; !ok {
		return false
	}
	delete(g.players, id)

	for i, slotID := range g.colorSlots {
		if slotID == id {
			g.colorSlots = append(g.colorSlots[:i], g.colorSlots[i+1:]...)
			g.legendDirty = true
			break
		}
	}
	return true
}

// HasPlayer 玩家是否已加入
func (g *Game) HasPlayer(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.players[id]
	return ok
}

// PlayerCount 返回已加入的玩家数
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

func (g *Game) freeColorLocked() (string, bool) {
	if len(g.colorSlots) >= len(Palette) {
		return "", false
	}
	used := make(map[string]bool, len(g.colorSlots))
	for _, id := range g.colorSlots {
		used[g.players[id].info.Color] = true
	}
	for _, c := range Palette {
		if !used[c] {
			return c, true
		}
	}
	return "", false
}

// DrainLegend 若图例自上次读取后有变化，返回当前图例并清除变化标记。
// 读取与清除在同一把锁内完成，与玩家加入/离开互斥。
func (g *Game) DrainLegend() ([]LegendEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.legendDirty {
		return nil, false
	}
	g.legendDirty = false

	legend := make([]LegendEntry, 0, len(g.colorSlots))
	for _, id := range g.colorSlots {
		p := g.players[id]
		legend = append(legend, LegendEntry{PlayerName: p.info.Name, Color: p.info.Color})
	}
	return legend, true
}

// --- 回合 ---

// StartNewTurn 开始新回合并选出目标城市，返回回合号
func (g *Game) StartNewTurn() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open {
		return g.turn, ErrTurnStillOpen
	}
	g.turn++
	g.open = true
	g.target = g.picker.Next()
	for _, p := range g.players {
		clear(p.answers)
	}
	return g.turn, nil
}

// CurrentTarget 返回当前回合目标
func (g *Game) CurrentTarget() Target {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target
}

// TurnNumber 返回当前（或最近一次）回合号
func (g *Game) TurnNumber() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.turn
}

// IsTurnOpen 当前回合是否接受答案
func (g *Game) IsTurnOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// SubmitAnswer 提交答案
func (g *Game) SubmitAnswer(id string, lat, lng float64) error {
	if !geo.ValidCoordinates(lat, lng) {
		return apperrors.ErrInvalidAnswer
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[id]
	if !ok {
		return apperrors.ErrNotJoined
	}
	if !g.open {
		return apperrors.ErrTurnNotOpen
	}
	if _, answered := p.answers[g.turn]; answered && !g.cfg.AllowMultipleAnswer {
		return apperrors.ErrAlreadyAnswered
	}
	p.answers[g.turn] = Answer{Lat: lat, Lng: lng, Seq: g.nextSeq()}
	return nil
}

// EndCurrentTurn 结束当前回合，计算所有作答玩家的成绩并排名
func (g *Game) EndCurrentTurn() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return apperrors.ErrTurnNotOpen
	}
	g.open = false

	type entry struct {
		info   PlayerInfo
		answer Answer
		result Result
	}
	entries := make([]entry, 0, len(g.players))
	for _, p := range g.players {
		answer, ok := p.answers[g.turn]
		if !ok {
			continue
		}
		distance := geo.Distance(answer.Lat, answer.Lng, g.target.Lat, g.target.Lng)
		result := Result{
			Distance: distance,
			Score:    geo.Score(distance, g.cfg.ScoreMaxDistance, g.cfg.MaxScore),
		}
		p.results = append(p.results, result)
		if over := len(p.results) - g.cfg.LeaderboardAnswerCount; over > 0 {
			p.results = append([]Result(nil), p.results[over:]...)
		}
		entries = append(entries, entry{info: p.info, answer: answer, result: result})
	}

	// 距离升序，距离相同时先提交者在前
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].result.Distance != entries[j].result.Distance {
			return entries[i].result.Distance < entries[j].result.Distance
		}
		return entries[i].answer.Seq < entries[j].answer.Seq
	})

	closed := &closedTurn{
		number:  g.turn,
		ranked:  make([]PlayerInfo, len(entries)),
		results: make(map[string]Result, len(entries)),
		answers: make(map[string]Answer, len(entries)),
	}
	for i, e := range entries {
		closed.ranked[i] = e.info
		closed.results[e.info.ID] = e.result
		closed.answers[e.info.ID] = e.answer
	}
	g.last = closed
	return nil
}

func (g *Game) closedLocked(turn int) (*closedTurn, error) {
	if g.last == nil || g.last.number != turn {
		return nil, ErrUnknownTurn
	}
	return g.last, nil
}

// RankedPlayersForTurn 返回已结束回合的排名（距离升序）
func (g *Game) RankedPlayersForTurn(turn int) ([]PlayerInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ct, err := g.closedLocked(turn)
	if err != nil {
		return nil, err
	}
	return append([]PlayerInfo(nil), ct.ranked...), nil
}

// ResultFor 返回玩家在已结束回合的成绩
func (g *Game) ResultFor(playerID string, turn int) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ct, err := g.closedLocked(turn)
	if err != nil {
		return Result{}, err
	}
	r, ok := ct.results[playerID]
	if !ok {
		return Result{}, ErrNoResult
	}
	return r, nil
}

// AnswerFor 返回玩家在已结束回合的答案
func (g *Game) AnswerFor(playerID string, turn int) (Answer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ct, err := g.closedLocked(turn)
	if err != nil {
		return Answer{}, err
	}
	a, ok := ct.answers[playerID]
	if !ok {
		return Answer{}, ErrNoResult
	}
	return a, nil
}

// RankedScores 返回有成绩玩家的累计得分（最近 N 个成绩之和），得分降序，
// 得分相同按加入顺序
func (g *Game) RankedScores() []Score {
	g.mu.Lock()
	defer g.mu.Unlock()

	type scored struct {
		Score
		joinSeq uint64
	}
	list := make([]scored, 0, len(g.players))
	for _, p := range g.players {
		if len(p.results) == 0 {
			continue
		}
		total := 0
		for _, r := range p.results {
			total += r.Score
		}
		list = append(list, scored{Score: Score{Player: p.info, Score: total}, joinSeq: p.joinSeq})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Score.Score != list[j].Score.Score {
			return list[i].Score.Score > list[j].Score.Score
		}
		return list[i].joinSeq < list[j].joinSeq
	})

	scores := make([]Score, len(list))
	for i, s := range list {
		scores[i] = s.Score
	}
	return scores
}
