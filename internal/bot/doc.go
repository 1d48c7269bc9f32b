// Package bot — «склейка» вокруг gameclient, discovery и state, реализующая
// демонстрационного интерактивного бота. Бот:
//   - держит сессию с сервисом и пересинхронизируется после реконнектов;
//   - ведёт локальное зеркало сцен/групп/участников/контролов;
//   - реагирует на нажатия кнопок (giveInput): антидребезг, серверный кулдаун
//     в серверных часах, подтверждение spark-транзакций (capture);
//   - встречает новых участников и переводит их в настроенную группу;
//   - по issueMemoryWarning сбрасывает кэш и придушивает трафик;
//   - следит за счётчиками троттлинга (throttle-watch);
//   - поддерживает конфиг (UseConfig/SaveConfig).
//
// Жизненный цикл:
//   - Создать бота через New(log).
//   - Передать клиентов: SetGameClient(...), (опционально) SetDiscovery(...).
//   - (Опционально) UseConfig("conf/botconfig.json") — применит кнопки.
//   - Запустить Start() и остановить Stop().
//
// Пример:
//
//	b := bot.New(log)
//	b.SetGameClient(gameclient.Config{
//		Endpoints: []string{"wss://interactive.example.com/gameClient"},
//		Token:     token,
//	})
//	_ = b.UseConfig("conf/botconfig.json")
//
//	if err := b.Start(); err != nil { log.Fatal().Err(err).Send() }
//	defer b.Stop()
//	_ = b.StartThrottleWatch(30 * time.Second)
//
// Конфигурация:
//   - хранится в JSON (см. BotConfig): auto_ready, default_group, список
//     кнопок с кулдаунами и правила троттлинга для memory warning. Рантайм
//     меняет состояние и сохраняет конфиг через SaveConfig().
package bot
