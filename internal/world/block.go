package world

import (
	"github.com/annel0/blockguard/internal/world/block"
)

// Ключ метаданных, под которым хранятся строки таблички
const PayloadSignLines = "lines"

// Block представляет собой блок в игровом мире
type Block struct {
	ID      block.ID               // Идентификатор типа блока
	Payload map[string]interface{} // Метаданные блока (состояние)
}

// NewBlock создаёт новый блок с указанным ID и пустыми метаданными
func NewBlock(id block.ID) Block {
	return Block{
		ID:      id,
		Payload: make(map[string]interface{}),
	}
}

// Category возвращает семантическую категорию блока
func (b Block) Category() block.Category {
	return block.Classify(b.ID)
}

// SignLines извлекает строки таблички из метаданных
func (b Block) SignLines() ([4]string, bool) {
	var lines [4]string
	if !block.IsSign(b.ID) || b.Payload == nil {
		return lines, false
	}
	switch raw := b.Payload[PayloadSignLines].(type) {
	case [4]string:
		return raw, true
	case []string:
		copy(lines[:], raw)
		return lines, true
	case []interface{}:
		// После JSON-десериализации строки приходят как []interface{}
		for i := 0; i < len(raw) && i < len(lines); i++ {
			if s, ok := raw[i].(string); ok {
				lines[i] = s
			}
		}
		return lines, true
	}
	return lines, false
}

// Clone создаёт копию блока
func (b Block) Clone() Block {
	newPayload := make(map[string]interface{}, len(b.Payload))
	for k, v := range b.Payload {
		newPayload[k] = v
	}

	return Block{
		ID:      b.ID,
		Payload: newPayload,
	}
}
