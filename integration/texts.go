package integration

// User-facing texts. {$.user.first_name} is filled in from the subject record.
const textWhatsappExplain = "{$.user.first_name}, para integrarmos o seu Whatsapp com o nosso sistema, será preciso logar em uma sessão do Whatsapp Web, siga atentamente as instruções abaixo:\n\n" +
	"1. Abra essa conversa em *outro* dispositivo.\n" +
	"2. Abra o Whatsapp no seu *celular*.\n" +
	"3. Vá até as configurações do Whatsapp e clique em *Dispositivos Conectados*.\n" +
	"4. Aponte a câmera do seu celular para o *QR Code* que será exibido nessa conversa.\n" +
	"5. Aguarde a confirmação da integração."
const textProceed = "Para prosseguir, responda 'ok' ou 'continuar'."
const textWhatsappBeQuick = "Na próxima etapa, *você deve ser rápido*, uma vez que o código QR gerado, *expira* em segundos, por favor, garanta que já consegue escanear o código com seu celular, antes de prosseguir.\n\nPara prosseguir, responda 'ok' ou 'continuar'."
const textWhatsappWaitQR = "Aguarde um momento, estou gerando o QR Code para você."
const textWhatsappQRCaption = "Escaneie o QR Code para prosseguir com a integração."
const textWhatsappSuccess = "Sua integração foi realizada com sucesso! ✅"
const textWhatsappFailure = "Algo deu errado na sua integração, tente novamente solicitando ao agente! ❌"
const textWhatsappCanceled = "Você cancelou a integração com o Whatsapp."

const agentWhatsappSuccess = "SYSTEM MESSAGE: Integração do Whatsapp realizada com sucesso!"
const agentWhatsappFailure = "SYSTEM MESSAGE: Integração do Whatsapp falhou! Você deve perguntar ao usuário se ele quer tentar novamente."
const agentWhatsappCanceled = "SYSTEM MESSAGE: O usuário cancelou a integração com o Whatsapp. Pergunte a ele se deseja tentar novamente."

const textGoogleStarting = "*{$.user.first_name}*, estamos iniciando a integração com sua conta do Google, enquanto geramos o link de autorização, por favor aguarde um momento."
const textGoogleLink = "*{$.user.first_name}*, para integrarmos o Google, preciso que você autorize o acesso. Clique no link abaixo para continuar:\n\n%s\n\nApós autorizar, volte aqui e aguarde a confirmação."
const textGoogleWaiting = "Aguardando o usuário autorizar o acesso ao Google Calendar."
const textGoogleSuccess = "```Sua integração foi realizada com sucesso!``` ✅"
const textGoogleFailure = "```Algo deu errado na sua integração com o Google.``` ❌"
const textGoogleCanceled = "```Você cancelou a integração com o Google Calendar.```"

const agentGoogleSuccess = "SYSTEM MESSAGE: Integração do Google realizada com sucesso!"
const agentGoogleFailure = "SYSTEM MESSAGE: Integração do Google falhou! Você deve perguntar ao usuário se ele quer tentar novamente."
const agentGoogleCanceled = "SYSTEM MESSAGE: O usuário cancelou a integração com o Google Calendar. Pergunte a ele se deseja tentar novamente."

const agentNewUser = "SYSTEM MESSAGE: O usuário {$.user.first_name} acabou de se cadastrar. Apresente-se e inicie as configurações iniciais."

const UsageHint = "Comando inválido. Use 'iniciar', 'continuar', 'cancelar' ou 'reiniciar'."
