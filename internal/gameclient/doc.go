// Package gameclient реализует клиент интерактивного вещательного сервиса:
// двунаправленный JSON-RPC поверх WebSocket. Клиент устанавливает сессию
// (dial + серверный hello), нумерует исходящие вызовы монотонным id, сводит
// reply с ожидающими вызовами ровно один раз, раздаёт серверные методы
// подписчикам и автоматически реконнектится с экспоненциальным backoff.
//
// Высокоуровневые методы:
//
//   - Ready, Capture, Scenes/CreateScenes/DeleteScene,
//     CreateGroups/UpdateGroups/DeleteGroup,
//     CreateControls/UpdateControls/DeleteControls, UpdateParticipants,
//     SetCompression, SetBandwidthThrottle/ThrottleStats, ServerTime.
//
// События (Subscribe по виду, колбэки-поля для жизненного цикла):
//
//   - KindGiveInput, KindParticipantJoin/Leave/Update, KindScene*/KindGroup*/
//     KindControl*, KindMemoryWarning, KindUndefined, KindAny;
//   - OnConnecting, OnConnected, OnDisconnected, OnError.
//
// Безопасность и устойчивость:
//
//   - Запись в сокет сериализована (мьютекс + write-deadline), keep-alive
//     через ws ping/pong.
//   - Каждый вызов разрешается ровно один раз: ответом, *ReplyError от
//     сервера либо *NoReplyError при таймауте/обрыве/Disconnect.
//   - Фоновая синхронизация часов: раунды getTime, поправка доступна через
//     TimeAdjustment/ServerNow; при полностью неудачном раунде действует
//     прежняя поправка.
//   - Сжатие трафика договаривается через setCompression (gzip-кадры с
//     varint-префиксом длины) и переустанавливается при реконнекте.
//
// Пример:
//
//	cli := gameclient.New(gameclient.Config{
//	    Endpoints:   []string{"wss://interactive1.example.com/gameClient"},
//	    Token:       token,
//	    Compression: []string{gameclient.SchemeGzip},
//	})
//	cli.OnConnected = func() { fmt.Println("connected") }
//	if err := cli.Connect(ctx); err != nil { log.Fatal(err) }
//	defer cli.Disconnect()
//
//	cli.Subscribe(gameclient.KindGiveInput, func(ev *gameclient.Event) {
//	    in, _ := ev.Input()
//	    fmt.Println("input from", in.ParticipantID)
//	})
//	_ = cli.Ready(ctx, true)
package gameclient
