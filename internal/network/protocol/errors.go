package protocol

// 错误码
const (
	ErrCodeUnknown         = 1000
	ErrCodeInvalidMsg      = 1001
	ErrCodeRateLimit       = 1002 // 速率限制
	ErrCodeNotJoined       = 2001
	ErrCodeAlreadyJoined   = 2002
	ErrCodeInvalidName     = 2003
	ErrCodeTurnNotOpen     = 3001
	ErrCodeAlreadyAnswered = 3002
	ErrCodeInvalidAnswer   = 3003
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:         "unknown error",
	ErrCodeInvalidMsg:      "invalid message format",
	ErrCodeRateLimit:       "too many requests",
	ErrCodeNotJoined:       "player has not joined the game",
	ErrCodeAlreadyJoined:   "player already joined the game",
	ErrCodeInvalidName:     "invalid player name",
	ErrCodeTurnNotOpen:     "no turn is accepting answers",
	ErrCodeAlreadyAnswered: "answer already submitted for this turn",
	ErrCodeInvalidAnswer:   "answer coordinates out of range",
}
