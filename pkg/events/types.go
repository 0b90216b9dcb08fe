package events

const (
	TypeChatAnswered     = "chat.answered"
	TypeKnowledgeAdded   = "knowledge.added"
	TypeKnowledgeUpdated = "knowledge.updated"
)

// ChatAnswered is emitted once per resolved request, apologies included.
func ChatAnswered(requestID, userID, origin, source, text string, score *float64) BaseEvent {
	data := map[string]interface{}{
		"request_id": requestID,
		"user_id":    userID,
		"origin":     origin,
		"source":     source,
		"text":       text,
	}
	if score != nil {
		data["score"] = *score
	}
	return NewEvent(TypeChatAnswered, data)
}

func KnowledgeAdded(entryID, question, addedBy string) BaseEvent {
	return NewEvent(TypeKnowledgeAdded, map[string]interface{}{
		"entry_id": entryID,
		"question": question,
		"added_by": addedBy,
	})
}

func KnowledgeUpdated(entryID, question string) BaseEvent {
	return NewEvent(TypeKnowledgeUpdated, map[string]interface{}{
		"entry_id": entryID,
		"question": question,
	})
}
