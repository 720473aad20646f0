package guard

// Rule описывает одну проверку цепочки. Deny возвращает true, чтобы запретить событие.
// Проверка без запрета может выполнить побочный эффект (прочность, текст таблички).
type Rule[E Event] struct {
	Name     string
	Deny     func(s *Scope, ev E) bool
	Message  string
	DropSign bool
}

// Chain представляет упорядоченный список проверок категории.
// Первая сработавшая проверка определяет запрет, следующие не выполняются.
type Chain[E Event] struct {
	Category Category
	Rules    []Rule[E]
}

// Evaluate сворачивает проверки слева направо
func (c Chain[E]) Evaluate(s *Scope, ev E) Verdict {
	for _, r := range c.Rules {
		if !r.Deny(s, ev) {
			continue
		}
		v := Veto(r.Name, r.Message)
		if r.DropSign {
			pos := ev.Position()
			v.DropSign = &pos
		}
		v.Notices = s.notices
		return v
	}
	return Verdict{Notices: s.notices}
}

// Names возвращает имена проверок в порядке выполнения
func (c Chain[E]) Names() []string {
	names := make([]string, len(c.Rules))
	for i, r := range c.Rules {
		names[i] = r.Name
	}
	return names
}
