// Package doubaospeech 提供豆包端到端实时语音对话 (Realtime Dialogue) 的 Go 实现
//
// 一个 RealtimeSession 对应一场逻辑上连续的语音对话：
//
//   - 上行: PCM 音频 (SendAudio)、开场白 (SayHello)、参考资料 (SendContext)
//   - 下行: 回复音频、完整的 AI/用户文本、打断、会话结束、服务端错误
//
// 连接断开、服务端返回错误帧或连续收到损坏帧时，会话会用原始配置重新握手，
// 生成新的 session id，事件流不中断。
//
// # 快速开始
//
//	client := doubaospeech.NewClient("your_app_id",
//	    doubaospeech.WithV2APIKey("your_access_key", ""),
//	)
//
//	session, err := client.Realtime.Connect(ctx, doubaospeech.DefaultRealtimeConfig(systemRole))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.SayHello(ctx, "你好，我是今天的面试官。")
//
//	for ev, err := range session.Events() {
//	    if err != nil {
//	        log.Fatal(err) // 重连失败
//	    }
//	    switch ev.Type {
//	    case doubaospeech.RealtimeEventAudio:
//	        // 24kHz s16le PCM
//	    case doubaospeech.RealtimeEventTranscript:
//	        fmt.Println(ev.Speaker, ev.Text)
//	    }
//	}
//
// # 认证
//
// WebSocket 握手携带以下请求头：
//
//	X-Api-App-Id:      {app_id}
//	X-Api-Access-Key:  {access_key}
//	X-Api-Resource-Id: volc.speech.dialog
//	X-Api-App-Key:     PlgvMymc7f3tQnJ6 (固定值)
//	X-Api-Connect-Id:  {uuid}
//
// # 二进制协议
//
// 每帧为 4 字节头 + event (u32) + [session id (u32 长度 + 数据)] + payload 长度 (u32) + payload。
// StartConnection / FinishConnection 不带 session id；错误帧在 payload 前携带 u32 错误码。
// payload 使用 gzip 压缩，控制帧为 JSON，音频帧为原始 PCM。
package doubaospeech
