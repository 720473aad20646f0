package guard

import "github.com/annel0/blockguard/internal/vec"

// Сообщения игроку
const (
	MsgNoPermission   = "You don't have permission for this area."
	MsgChestProtected = "The chest is protected."
	MsgChestSpot      = "This spot is for a chest that you don't have permission for."
	MsgTeaParty       = "You're not invited to this tea party!"
	MsgNotChestOwner  = "You do not own the adjacent chest."
	MsgLockWallSign   = "The [Lock] sign must be a sign post, not a wall sign."
	MsgLockOwnerLine  = "The first owner line must be your name."
	MsgLockUnsafe     = "That is not a safe block that you're putting this sign on."
	MsgLockAccepted   = "A chest or double chest above is now protected."
	MsgLockDisabled   = "WorldGuard's sign chest protection is disabled."
)

// Verdict представляет результат проверки события. Нулевое значение означает Allow.
type Verdict struct {
	Vetoed   bool      `json:"vetoed"`
	Check    string    `json:"check,omitempty"`     // Сработавшая проверка
	Message  string    `json:"message,omitempty"`   // Сообщение игроку при запрете
	DropSign *vec.Vec3 `json:"drop_sign,omitempty"` // Табличку в этой позиции нужно выбить
	Notices  []string  `json:"notices,omitempty"`   // Сообщения игроку, не связанные с запретом

	// Changes содержит клетки, изменённые губками после разрешения
	Changes []BlockChange `json:"changes,omitempty"`
}

// Allow разрешает событие
var Allow = Verdict{}

// Allowed сообщает, что событие разрешено
func (v Verdict) Allowed() bool { return !v.Vetoed }

// Veto создаёт запрещающий вердикт
func Veto(check, message string) Verdict {
	return Verdict{Vetoed: true, Check: check, Message: message}
}
