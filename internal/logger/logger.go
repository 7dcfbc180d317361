// Package logger 提供引擎审计日志：任务生成、阶段推进、重试等
// 关键事件以 JSON 行写入可轮转的日志文件，便于事后核对状态机轨迹。
package logger

import (
	"encoding/json"
	"io"
	"log"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var engine = log.New(io.Discard, "", 0)

// Init 将审计日志指向给定文件并启用按大小轮转。
// path 为空或未调用 Init 时，Event 静默丢弃（测试场景）。
func Init(path string) {
	if path == "" {
		return
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	engine = log.New(writer, "", 0)
}

// Event 记录一条引擎事件，fields 为附加上下文
func Event(event string, fields map[string]any) {
	record := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		record[k] = v
	}
	record["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	record["event"] = event

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	engine.Println(string(data))
}
