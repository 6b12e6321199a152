package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"wecom-keyword-alert/internal/common/validation"
	"wecom-keyword-alert/internal/store"
)

// setConfigSchema validates the generic config upsert body.
var setConfigSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"key", "value"},
	"properties": map[string]interface{}{
		"key":         map[string]interface{}{"type": "string", "minLength": 1},
		"value":       map[string]interface{}{},
		"description": map[string]interface{}{"type": "string"},
	},
}

func (s *Server) handleListConfigs() gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := s.configs.All(c.Request.Context())
		if err != nil {
			s.log.WithError(err).Error("failed to list configs", nil)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "获取配置失败"})
			return
		}

		// Values holding JSON are decoded so list-valued settings come back
		// as arrays, not strings.
		configMap := make(map[string]gin.H, len(entries))
		for _, entry := range entries {
			var value interface{} = entry.Value
			var decoded interface{}
			if err := json.Unmarshal([]byte(entry.Value), &decoded); err == nil {
				value = decoded
			}
			configMap[entry.Key] = gin.H{
				"value":       value,
				"description": entry.Description,
				"updatedAt":   entry.UpdatedAt,
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": configMap})
	}
}

func (s *Server) handleSetConfig() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "缺少必需参数：key 或 value"})
			return
		}

		result, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(setConfigSchema),
			gojsonschema.NewGoLoader(body),
		)
		if err != nil || !result.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "缺少必需参数：key 或 value"})
			return
		}

		key := body["key"].(string)
		description, _ := body["description"].(string)

		// Structured values are stored as JSON, scalars as their string form.
		var value string
		switch v := body["value"].(type) {
		case string:
			value = v
		case map[string]interface{}, []interface{}:
			encoded, err := json.Marshal(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "缺少必需参数：key 或 value"})
				return
			}
			value = string(encoded)
		default:
			value = fmt.Sprintf("%v", v)
		}

		entry, err := s.configs.Set(c.Request.Context(), key, value, description)
		if err != nil {
			s.log.WithError(err).Error("failed to set config", map[string]interface{}{"key": key})
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "设置配置失败"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    entry,
			"message": "配置已更新",
		})
	}
}

// recipientEndpoint describes one typed recipient-list endpoint: the config
// key it writes, the JSON field it reads, and the per-entry validation.
type recipientEndpoint struct {
	key        string
	field      string
	validate   func(string) bool
	notArray   string
	invalidFmt string // %s: comma-joined offending entries
	savedFmt   string // %d: accepted entry count
	setErr     string
}

var phoneNumbersEndpoint = recipientEndpoint{
	key:        store.KeySMSPhoneNumbers,
	field:      "phoneNumbers",
	validate:   validation.ValidPhoneNumber,
	notArray:   "phoneNumbers 必须是数组",
	invalidFmt: "以下手机号格式不正确: %s",
	savedFmt:   "已设置 %d 个手机号",
	setErr:     "设置手机号列表失败",
}

var userIDsEndpoint = recipientEndpoint{
	key:        store.KeyWeComUserIDs,
	field:      "userIds",
	validate:   validation.ValidUserID,
	notArray:   "userIds 必须是数组",
	invalidFmt: "以下 UserID 格式不正确: %s",
	savedFmt:   "已设置 %d 个接收人",
	setErr:     "设置接收人列表失败",
}

var emailRecipientsEndpoint = recipientEndpoint{
	key:        store.KeyEmailRecipients,
	field:      "emails",
	validate:   validation.ValidEmail,
	notArray:   "emails 必须是数组",
	invalidFmt: "以下邮箱格式不正确: %s",
	savedFmt:   "已设置 %d 个邮箱",
	setErr:     "设置邮箱列表失败",
}

func (s *Server) handleGetRecipients(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		recipients, err := s.configs.GetRecipients(c.Request.Context(), key)
		if err != nil {
			s.log.WithError(err).Error("failed to load recipients", map[string]interface{}{"key": key})
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "获取配置失败"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": recipients})
	}
}

// handleSetRecipients replaces one recipient list wholesale. A single invalid
// entry rejects the entire batch, with every offender named, so a partial
// list can never be written.
func (s *Server) handleSetRecipients(ep recipientEndpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": ep.notArray})
			return
		}

		raw, ok := body[ep.field].([]interface{})
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": ep.notArray})
			return
		}

		strs := make([]string, 0, len(raw))
		var invalid []string
		for _, item := range raw {
			v, ok := item.(string)
			if !ok {
				invalid = append(invalid, fmt.Sprintf("%v", item))
				continue
			}
			strs = append(strs, v)
		}
		values, bad := validation.SplitValid(strs, ep.validate)
		invalid = append(invalid, bad...)
		if values == nil {
			values = []string{}
		}

		if len(invalid) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   fmt.Sprintf(ep.invalidFmt, strings.Join(invalid, ", ")),
			})
			return
		}

		if err := s.configs.SetRecipients(c.Request.Context(), ep.key, values); err != nil {
			s.log.WithError(err).Error("failed to save recipients", map[string]interface{}{"key": ep.key})
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": ep.setErr})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    values,
			"message": fmt.Sprintf(ep.savedFmt, len(values)),
		})
	}
}
