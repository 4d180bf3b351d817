package apperrors

import (
	"errors"

	"github.com/palemoky/geoquiz/internal/network/protocol"
)

// GameError 游戏错误（会回传给客户端）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrNotJoined       = &GameError{Code: protocol.ErrCodeNotJoined, Message: "player has not joined the game"}
	ErrAlreadyJoined   = &GameError{Code: protocol.ErrCodeAlreadyJoined, Message: "player already joined the game"}
	ErrInvalidName     = &GameError{Code: protocol.ErrCodeInvalidName, Message: "invalid player name"}
	ErrTurnNotOpen     = &GameError{Code: protocol.ErrCodeTurnNotOpen, Message: "no turn is accepting answers"}
	ErrAlreadyAnswered = &GameError{Code: protocol.ErrCodeAlreadyAnswered, Message: "answer already submitted for this turn"}
	ErrInvalidAnswer   = &GameError{Code: protocol.ErrCodeInvalidAnswer, Message: "answer coordinates out of range"}
)

// ToMessage 将错误转换为客户端错误消息，非 GameError 统一为未知错误
func ToMessage(err error) *protocol.Message {
	var ge *GameError
	if errors.As(err, &ge) {
		return protocol.NewErrorMessageWithText(ge.Code, ge.Message)
	}
	return protocol.NewErrorMessage(protocol.ErrCodeUnknown)
}
