// Package bridge 将浏览器端 WebSocket 连接桥接到豆包实时语音对话。
//
// 每个客户端连接对应一个 Dialogue：
//
//   - 首条文本消息为初始化消息，可携带 {"type":"init","data":{"interview_id":"..."}}
//   - 二进制帧为麦克风 PCM (16kHz s16le)，转发给 SendAudio
//   - {"type":"context","data":{"text":"..."}} 追加参考资料
//   - {"type":"control","data":{"action":"end"}} 结束对话
//
// 下行消息统一为 {"type": ..., "data": {...}}，音频以 base64 编码放在
// ai_audio.data.audio 中。
package bridge
