package remote

import "time"

// Timestamps in the directory are text in one of two shapes, depending on
// which client wrote them: a flat datetime string, or a decomposed
// {year, month, day, hour, minute, second} map. Firestore-native timestamps
// also appear in older documents.
const wireTimeLayout = "2006-01-02T15:04:05"

func parseWireTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, wireTimeLayout, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case map[string]any:
		year, ok := asInt(t["year"])
		if !ok {
			return time.Time{}, false
		}
		month, _ := asInt(t["month"])
		day, _ := asInt(t["day"])
		if month == 0 {
			month = 1
		}
		if day == 0 {
			day = 1
		}
		hour, _ := asInt(t["hour"])
		minute, _ := asInt(t["minute"])
		second, _ := asInt(t["second"])
		return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
	default:
		return time.Time{}, false
	}
}

func formatWireTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func householdFromDoc(docID string, data map[string]any) Household {
	h := Household{
		ID:        docID,
		Name:      asString(data["name"]),
		CreatedBy: asString(data["createdByUserId"]),
		IsPrivate: asBool(data["isPrivate"]),
	}
	if t, ok := parseWireTime(data["createdAt"]); ok {
		h.CreatedAt = t
	}
	return h
}

func householdDoc(h Household) map[string]any {
	return map[string]any{
		"name":            h.Name,
		"createdByUserId": h.CreatedBy,
		"isPrivate":       h.IsPrivate,
		"createdAt":       formatWireTime(h.CreatedAt),
	}
}

func memberFromDoc(data map[string]any) Member {
	m := Member{
		UserID:   asString(data["userId"]),
		UserName: asString(data["userName"]),
		Role:     asString(data["role"]),
	}
	if t, ok := parseWireTime(data["joinedAt"]); ok {
		m.JoinedAt = t
	}
	return m
}

func memberDoc(m Member) map[string]any {
	return map[string]any{
		"userId":   m.UserID,
		"userName": m.UserName,
		"role":     m.Role,
		"joinedAt": formatWireTime(m.JoinedAt),
	}
}

func productDoc(p Product) map[string]any {
	return map[string]any{
		"productId":  p.ProductID,
		"createdBy":  p.CreatedBy,
		"name":       p.Name,
		"brand":      p.Brand,
		"barcode":    p.Barcode,
		"quantity":   p.Quantity,
		"bestBefore": formatWireTime(p.BestBefore),
		"enteredAt":  formatWireTime(p.EnteredAt),
		"imageUrl":   p.ImageURL,
	}
}

func invitationFromDoc(code string, data map[string]any) Invitation {
	inv := Invitation{
		Code:        code,
		HouseholdID: asString(data["householdId"]),
		CreatedBy:   asString(data["createdByUserId"]),
		Active:      asBool(data["active"]),
	}
	if t, ok := parseWireTime(data["createdAt"]); ok {
		inv.CreatedAt = t
	}
	if t, ok := parseWireTime(data["expiresAt"]); ok {
		inv.ExpiresAt = t
	}
	return inv
}

func invitationDoc(inv Invitation) map[string]any {
	return map[string]any{
		"householdId":     inv.HouseholdID,
		"createdByUserId": inv.CreatedBy,
		"createdAt":       formatWireTime(inv.CreatedAt),
		"expiresAt":       formatWireTime(inv.ExpiresAt),
		"active":          inv.Active,
	}
}
