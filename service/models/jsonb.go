package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// 通用 JSON 类型，postgres 存 jsonb，sqlite 测试库存 text
type JSONB map[string]interface{}

type JSONBArray []JSONB

// JSONBStringArray 用于存储字符串数组的 JSONB 类型
type JSONBStringArray []string

func scanJSONBBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("类型断言失败: 不是 []byte 或 string")
	}
}

// 实现 Scanner 接口
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanJSONBBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// 实现 Valuer 接口
func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONBArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanJSONBBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONBArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanJSONBBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONBStringArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}
