package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"Outreach/internal/model"
)

var errEmptyBody = errors.New("empty response body")

// profile is the user shape the backend returns. Staff profiles carry StaffType;
// stakeholders carry role. Some endpoints already return the flat User shape.
type profile struct {
	ID        json.RawMessage `json:"id"`
	UserID    json.RawMessage `json:"userId"`
	Name      string          `json:"name"`
	FirstName string          `json:"First_Name"`
	LastName  string          `json:"Last_Name"`
	StaffType *string         `json:"StaffType"`
	Role      string          `json:"role"`
	Email     string          `json:"email"`
	Type      model.UserType  `json:"type"`
}

func (p profile) user() model.User {
	u := model.User{
		ID:    rawID(p.ID),
		Name:  strings.TrimSpace(p.Name),
		Role:  p.Role,
		Email: p.Email,
		Type:  p.Type,
	}
	if u.ID == "" {
		u.ID = rawID(p.UserID)
	}
	if u.Name == "" {
		u.Name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	if p.StaffType != nil && *p.StaffType != "" {
		u.Role = *p.StaffType
	}
	if u.Type != model.UserTypeStaff && u.Type != model.UserTypeStakeholder {
		if p.StaffType != nil {
			u.Type = model.UserTypeStaff
		} else {
			u.Type = model.UserTypeStakeholder
		}
	}
	return u
}

// rawID accepts ids sent as strings or as numbers.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func decodeProfile(body []byte) (model.User, error) {
	obj, err := unwrap(body)
	if err != nil {
		return model.User{}, err
	}
	var p profile
	if err := json.Unmarshal(obj, &p); err != nil {
		return model.User{}, err
	}
	u := p.user()
	if u.ID == "" {
		return model.User{}, errors.New("profile has no id")
	}
	return u, nil
}

func decodeRecipients(body []byte) ([]model.User, error) {
	var raw []profile
	if err := decodeList(body, &raw); err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(raw))
	for _, p := range raw {
		u := p.user()
		if u.ID == "" {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// decodeList accepts a bare array or an object wrapping it under "data".
func decodeList(body []byte, v any) error {
	inner, err := unwrap(body)
	if err != nil {
		return err
	}
	if string(inner) == "null" {
		return nil
	}
	return json.Unmarshal(inner, v)
}

// unwrap strips a {"data": ...} envelope when present.
func unwrap(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	if body[0] != '{' {
		return body, nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if data, ok := env["data"]; ok {
		return bytes.TrimSpace(data), nil
	}
	return body, nil
}
