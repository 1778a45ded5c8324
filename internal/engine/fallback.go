package engine

// Запасные тексты на случай, когда все попытки генерации исчерпаны.
// Пользователь никогда не видит сырую ошибку: в худшем случае он получает
// тематически нейтральную главу или финал вместо явного сообщения об отказе.

var defaultStories = []string{
	`You stand at a mysterious crossroads, surrounded by a faint mist. There are three different paths leading to unknown horizons. Your heart is filled with curiosity and anticipation, wanting to explore this mysterious world.

A. Choose the left path, where there are warm lights.
B. Choose the middle path, where there are ancient stone steps.
C. Choose the right path, where there are clear bird chirps.
D. Stay in place and observe the surroundings.`,
	`You find yourself in an ancient library, with towering bookcases and a scent of books. A mysterious book falls from the shelf, emitting a crisp sound. You feel a mysterious attraction.

A. Immediately pick up that book, open it and read.
B. First observe the surroundings, ensure safety.
C. Ask the librarian about the information about this book.
D. Put the book back to its original place, continue searching for other books.`,
}

var defaultChapters = []string{
	`You continue forward and find a small wooden house. The door of the wooden house is slightly ajar, and warm light shines from inside. You feel a sense of warmth at home.

A. Enter the wooden house, explore the interior.
B. Wait outside the door, observe the situation.
C. Go around, continue forward.
D. Return to the original path, look for other directions.`,
	`You encounter a mysterious old man, who is pruning flowers in the garden. The old man looked at you, his eyes gleaming with wisdom.

A. Actively approach, ask for the way.
B. Keep a distance, observe the old man's behavior.
C. Wait for the old man to speak first.
D. Leave silently, do not disturb the old man.`,
}

const defaultEnding = `After this soul exploration journey, you have discovered your true thoughts deep inside. Each choice reflects your personality traits and values.

---

**Soulmate Type Analysis**
Based on your choices, you have shown unique personality traits. You tend to think carefully before acting and value your inner feelings and intuition. Your soulmate should be someone who understands your inner world, can communicate deeply with you, and grow together with you.`
